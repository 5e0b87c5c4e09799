package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"RideGap/src/config"
	"RideGap/src/dashboard"
	"RideGap/src/datapush"
	"RideGap/src/datasource/email"
	"RideGap/src/datasource/file"
	"RideGap/src/processor"
	"RideGap/src/storage"

	"github.com/robfig/cron"
)

// app 串联数据加载、报表刷新、文件监控、邮件拉取和看板
type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
	holder *processor.Holder

	mailClient email.MailService
	handler    *email.AttachmentHandler
	dingtalk   *datapush.DingTalk

	reportMu sync.Mutex // 同一时间只生成一份报表
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) *app {
	a := &app{
		cfg:    cfg,
		dcfg:   dcfg,
		logger: logger,
		holder: processor.NewHolder(nil),
	}
	if cfg.Email.Enabled {
		a.mailClient = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password)
		a.handler = email.NewAttachmentHandler(cfg, dcfg)
	}
	if cfg.DingTalk.Enabled && cfg.DingTalk.Webhook != "" {
		a.dingtalk = datapush.NewDingTalk(cfg.DingTalk.Webhook)
	}
	return a
}

// loadDataset 读取数据文件并替换当前数据集，失败时保留原数据集
func (a *app) loadDataset(path string) error {
	t1 := time.Now()
	records, err := file.Load(path, a.dcfg, a.cfg.SheetName)
	if err != nil {
		return err
	}
	ds := processor.NewDataset(records)
	a.holder.Set(ds)
	a.logger.Info(fmt.Sprintf("已加载 %s: %d 条请求，耗时 %v", path, ds.Len(), time.Since(t1)))
	return nil
}

// refreshReport 输出图表和工作簿，并按配置推送
func (a *app) refreshReport(ctx context.Context) error {
	a.reportMu.Lock()
	defer a.reportMu.Unlock()

	if err := a.logger.CheckRotate(a.cfg.LogMaxSize); err != nil {
		a.logger.Warning("日志轮转失败: " + err.Error())
	}

	t1 := time.Now()
	r, err := datapush.Publish(a.holder.Get(), a.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("生成报表失败: %w", err)
	}
	a.logger.Info(fmt.Sprintf("报表已更新: %s (%d 张图)，耗时 %v", r.Workbook, len(r.Charts), time.Since(t1)))

	var errs []error
	if a.dingtalk != nil {
		if err := a.dingtalk.PushReport(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("钉钉推送失败: %w", err))
		}
	}
	if a.cfg.SendEmail.Enabled {
		_, body := datapush.ReportMarkdown(r)
		if err := email.SendReport(a.cfg, body, r.Workbook); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkMail 拉取目标邮件，附件可用时替换数据集并刷新报表
func (a *app) checkMail(ctx context.Context) error {
	if a.mailClient == nil {
		return nil
	}
	newEmail, err := email.CheckAndProcessEmails(a.mailClient, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		return err
	}
	intake, err := a.handler.Handle(newEmail, a.logger)
	if err != nil {
		return fmt.Errorf("处理邮件失败(UID:%d): %w", newEmail.UID, err)
	}
	if intake == nil {
		return nil
	}

	a.holder.Set(processor.NewDataset(intake.Records))
	a.logger.Info(fmt.Sprintf("邮件数据已加载: %s (%d 条请求)", intake.Path, len(intake.Records)))
	return a.refreshReport(ctx)
}

// reload 重新读取配置的数据文件并刷新报表
func (a *app) reload(ctx context.Context) error {
	if err := a.loadDataset(a.cfg.DataPath()); err != nil {
		return err
	}
	return a.refreshReport(ctx)
}

// schedule 注册定时任务：报表刷新和邮件检查
func (a *app) schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()

	reportSpec := everySpec(a.cfg.ReportInterval)
	if err := c.AddFunc(reportSpec, func() {
		if err := a.refreshReport(ctx); err != nil {
			a.logger.Error(err.Error())
		}
	}); err != nil {
		return nil, fmt.Errorf("创建报表任务失败: %w", err)
	}

	if a.mailClient != nil {
		mailSpec := everySpec(a.cfg.Email.CheckInterval)
		if err := c.AddFunc(mailSpec, func() {
			a.logger.Info(fmt.Sprintf("开始定时检查(间隔: %v)...", mailSpec))
			if err := a.checkMail(ctx); err != nil {
				a.logger.Error("检查处理邮件失败: " + err.Error())
			}
		}); err != nil {
			return nil, fmt.Errorf("创建邮件任务失败: %w", err)
		}
	}
	return c, nil
}

// watch 数据文件更新后自动重载
func (a *app) watch(ctx context.Context) error {
	monitor, err := file.NewFileMonitor(a.cfg.DataPath())
	if err != nil {
		return err
	}
	defer monitor.Close()

	return monitor.Watch(ctx, func(path string) {
		if err := a.reload(ctx); err != nil {
			a.logger.Error(fmt.Sprintf("重载 %s 失败: %v", path, err))
		}
	}, func(err error) {
		a.logger.Warning("文件监控出错: " + err.Error())
	})
}

// serve 启动看板，ctx结束时关闭
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr: a.cfg.HTTPAddr,
		Handler: dashboard.NewServer(a.holder, a.logger, func() error {
			return a.reload(ctx)
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("看板关闭失败: " + err.Error())
		}
	}()

	a.logger.Info("看板已启动: " + a.cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// everySpec 转为cron的 "@every" 表达式
func everySpec(d config.Duration) string {
	return fmt.Sprintf("@every %s", time.Duration(d).String())
}
