package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"RideGap/src/config"
	"RideGap/src/storage"
)

func main() {
	jsonFolder := flag.String("config", "./config", "配置目录")
	once := flag.Bool("once", false, "生成一次报表后退出")
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*jsonFolder, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	// 初始化日志系统
	if dir := filepath.Dir(cfg.LogName); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Close()

	a := newApp(cfg, dcfg, logger)
	if err := a.loadDataset(cfg.DataPath()); err != nil {
		logger.Fatal(err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.refreshReport(ctx); err != nil {
		logger.Error(err.Error())
		if *once {
			os.Exit(1)
		}
	}
	if *once {
		return
	}

	c, err := a.schedule(ctx)
	if err != nil {
		logger.Error(err.Error())
		return // 重要错误应该终止程序
	}
	c.Start()
	defer c.Stop()

	var wg sync.WaitGroup
	if cfg.WatchData {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.watch(ctx); err != nil {
				logger.Error("文件监控失败: " + err.Error())
			}
		}()
	}
	if cfg.HTTPAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.serve(ctx); err != nil {
				logger.Error("看板启动失败: " + err.Error())
			}
		}()
	}

	logger.Info(fmt.Sprintf("服务已启动(报表间隔: %v)，按Ctrl+C退出", everySpec(cfg.ReportInterval)))
	waitForShutdown(logger)
	cancel()
	wg.Wait()
}

// waitForShutdown SIGHUP重新打开日志文件，SIGINT/SIGTERM返回
func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := logger.Reopen(""); err != nil {
				log.Println("reopen log failed:", err)
				continue
			}
			logger.Info("日志文件已重新打开")
			continue
		}
		logger.Info("Received signal: " + sig.String() + ", shutting down...")
		return
	}
}
