package main

import (
	"flag"
	"log"
	"os"
	"syscall"
)

// 向运行中的服务发送 SIGHUP，使其重新打开日志文件
func main() {
	pid := flag.Int("pid", os.Getpid(), "目标进程号")
	flag.Parse()

	err := syscall.Kill(*pid, syscall.SIGHUP)
	if err != nil {
		log.Fatal("Failed to send SIGHUP:", err)
	}
}
