// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"RideGap/src/config"
	"RideGap/src/datasource/file"
	"RideGap/src/model"
	"RideGap/src/storage"
)

// ====================== 邮件处理器实现 ======================

// Intake 从邮件中取得的数据集
type Intake struct {
	UID     uint32
	Path    string // 附件保存路径
	Records []model.RawRecord
}

// AttachmentHandler 保存目标邮件中的请求数据附件(.csv/.xlsx)
type AttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	SheetName     string          // xlsx附件读取的工作表
	dcfg          *config.DataConfig
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex    // 保护processedUIDs的读写锁
}

func NewAttachmentHandler(cfg *config.Config, dcfg *config.DataConfig) *AttachmentHandler {
	return &AttachmentHandler{
		TargetSubject: cfg.Email.TargetSubject,
		DataDir:       cfg.DataDir,
		SheetName:     cfg.SheetName,
		dcfg:          dcfg,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 校验并保存邮件中第一个能加载的数据附件
// 邮件已处理、主题不匹配或没有数据附件时返回 nil, nil
func (h *AttachmentHandler) Handle(email *Email, logger *storage.Logger) (*Intake, error) {
	if email == nil || h.IsProcessed(email.UID) {
		return nil, nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		logger.Debug("跳过主题不匹配的邮件: " + email.Subject)
		return nil, nil
	}

	logger.Info(fmt.Sprintf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %v", err)
	}

	var lastErr error
	for _, attachment := range email.Attachments {
		name := safeFilename(attachment.Filename)
		if name == "" {
			continue
		}

		// 先加载校验，格式不对的附件不落盘
		records, err := file.LoadBytes(name, attachment.Content, h.dcfg, h.SheetName)
		if err != nil {
			logger.Warning(fmt.Sprintf("附件 %s 无法加载: %v", name, err))
			lastErr = err
			continue
		}

		filePath := filepath.Join(h.DataDir, name)
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return nil, fmt.Errorf("保存附件失败: %v", err)
		}
		logger.Info(fmt.Sprintf("附件已保存到: %s (%d 条记录)", filePath, len(records)))

		h.markAsProcessed(email.UID)
		return &Intake{UID: email.UID, Path: filePath, Records: records}, nil
	}

	// 附件都不可用也不再重复处理
	h.markAsProcessed(email.UID)
	return nil, lastErr
}

// safeFilename 只保留文件名部分，且扩展名为 .csv 或 .xlsx
func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return name
	default:
		return ""
	}
}
