package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Email struct {
		Enabled       bool     `json:"enabled"`        // 是否从邮箱拉取数据
		Server        string   `json:"server"`         // IMAP服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	DataDir        string   `json:"data_dir"`        // 数据文件目录(邮件附件也保存在这里)
	DataFile       string   `json:"data_file"`       // 请求数据文件名
	SheetName      string   `json:"sheet_name"`      // xlsx数据所在工作表
	OutputDir      string   `json:"output_dir"`      // 图表和报表输出目录
	ReportInterval Duration `json:"report_interval"` // 报表刷新间隔
	WatchData      bool     `json:"watch_data"`      // 数据文件变化时自动重载
	HTTPAddr       string   `json:"http_addr"`       // 看板监听地址，为空则不启动
	LogName        string   `json:"log_name"`
	LogMaxSize     string   `json:"log_max_size"` // 形如 "10 * 1024 * 1024"

	SendEmail struct {
		Enabled  bool     `json:"enabled"`
		Server   string   `json:"server"` // SMTP服务器地址
		Username string   `json:"username"`
		Password string   `json:"password"`
		To       []string `json:"to"`
		Subject  string   `json:"subject"`
	} `json:"send_email"`

	DingTalk struct {
		Enabled bool   `json:"enabled"`
		Webhook string `json:"webhook"` // 机器人webhook地址
	} `json:"dingtalk"`
}

// DataPath 返回数据文件的完整路径
func (c *Config) DataPath() string {
	if filepath.IsAbs(c.DataFile) {
		return c.DataFile
	}
	return filepath.Join(c.DataDir, c.DataFile)
}

// DataConfig 数据源相关配置：列名映射、空值标记、时间格式
type DataConfig struct {
	Columns          map[string]string `json:"columns"`
	NullValues       []string          `json:"null_values"`
	TimestampLayouts []string          `json:"timestamp_layouts"`

	mu sync.RWMutex
}

// 数据配置中列名映射的逻辑名
const (
	KeyRequestID        = "request_id"
	KeyPickupPoint      = "pickup_point"
	KeyDriverID         = "driver_id"
	KeyStatus           = "status"
	KeyRequestTimestamp = "request_timestamp"
	KeyDropTimestamp    = "drop_timestamp"
)

// DefaultTimestampLayout 日-月-年 时:分:秒
const DefaultTimestampLayout = "02-01-2006 15:04:05"

// DefaultDataConfig 返回源数据默认的列名和格式
func DefaultDataConfig() *DataConfig {
	return &DataConfig{
		Columns: map[string]string{
			KeyRequestID:        "Request id",
			KeyPickupPoint:      "Pickup point",
			KeyDriverID:         "Driver id",
			KeyStatus:           "Status",
			KeyRequestTimestamp: "Request timestamp",
			KeyDropTimestamp:    "Drop timestamp",
		},
		NullValues:       []string{"NA"},
		TimestampLayouts: []string{DefaultTimestampLayout},
	}
}

// LoadConfig 读取配置目录下的应用配置和数据配置
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	return parseConfigs(configData, dataConfigData)
}

func parseConfigs(configData, dataConfigData []byte) (*Config, *DataConfig, error) {
	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	cfg.applyDefaults()
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	dcfg := DefaultDataConfig()
	defaults := dcfg.Columns
	dcfg.Columns = nil
	if err := json.Unmarshal(data, dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	// 未配置的列沿用默认列名
	if dcfg.Columns == nil {
		dcfg.Columns = make(map[string]string, len(defaults))
	}
	for k, v := range defaults {
		if _, ok := dcfg.Columns[k]; !ok {
			dcfg.Columns[k] = v
		}
	}
	if len(dcfg.TimestampLayouts) == 0 {
		dcfg.TimestampLayouts = []string{DefaultTimestampLayout}
	}
	resultChan <- dcfg
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.DataFile == "" {
		c.DataFile = "Uber Request Data.csv"
	}
	if c.SheetName == "" {
		c.SheetName = "Sheet1"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./output"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = Duration(10 * time.Minute)
	}
	if c.Email.CheckInterval == 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Column 返回逻辑名对应的源文件列名
func (dc *DataConfig) Column(key string) string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.Columns[key]
}

// SetColumn 修改逻辑名对应的源文件列名
func (dc *DataConfig) SetColumn(key, colName string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.Columns == nil {
		dc.Columns = make(map[string]string)
	}
	dc.Columns[key] = colName
}

// RequiredColumns 加载时必须存在的列
func (dc *DataConfig) RequiredColumns() []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return []string{
		dc.Columns[KeyRequestTimestamp],
		dc.Columns[KeyDropTimestamp],
		dc.Columns[KeyPickupPoint],
		dc.Columns[KeyStatus],
		dc.Columns[KeyDriverID],
	}
}

// Layouts 返回时间格式列表的副本
func (dc *DataConfig) Layouts() []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return append([]string(nil), dc.TimestampLayouts...)
}

// Nulls 返回空值标记列表的副本
func (dc *DataConfig) Nulls() []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return append([]string(nil), dc.NullValues...)
}
