package bootstrap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	log "github.com/sirupsen/logrus"

	"github.com/Goden-Gun/ezadmin/pkg/config"
)

// serviceHook 为每条日志附加服务名与实例标识
type serviceHook struct {
	fields log.Fields
}

func (h *serviceHook) Levels() []log.Level { return log.AllLevels }

func (h *serviceHook) Fire(entry *log.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// instanceID 容器内 hostname 即容器 ID
func instanceID() string {
	if id := config.GetNodeID("POD_NAME", "CONTAINER_ID"); id != "" {
		return id
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	if data, err := os.ReadFile("/etc/hostname"); err == nil {
		if hostname := strings.TrimSpace(string(data)); hostname != "" {
			return hostname
		}
	}
	return "unknown"
}

func newFormatter(format string) log.Formatter {
	if strings.EqualFold(format, "text") {
		return &log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano}
	}
	return &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        log.FieldMap{log.FieldKeyMsg: "message"},
	}
}

// InitLogger 仅设置格式与级别，输出到 stdout
func InitLogger(cfg config.LogConfig) error {
	return configure(cfg, "", false)
}

// InitLoggerWithFile 设置格式与级别，cfg.File.Enabled 时同时按天切割写入文件，
// 并为每条日志附加 service 与 instance 字段
func InitLoggerWithFile(cfg config.LogConfig, serviceName string) error {
	return configure(cfg, serviceName, true)
}

func configure(cfg config.LogConfig, serviceName string, withService bool) error {
	var out io.Writer = os.Stdout
	if cfg.File.Enabled {
		w, err := newRotateWriter(cfg.File, serviceName)
		if err != nil {
			return err
		}
		out = io.MultiWriter(os.Stdout, w)
	}
	log.SetOutput(out)
	log.SetFormatter(newFormatter(cfg.Format))
	log.SetReportCaller(cfg.ReportCaller)

	if withService {
		fields := log.Fields{"instance": instanceID()}
		if serviceName != "" {
			fields["service"] = serviceName
		}
		log.AddHook(&serviceHook{fields: fields})
	}

	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		lvl = log.InfoLevel
		log.Warnf("invalid log level %q, fallback to info", cfg.Level)
	}
	log.SetLevel(lvl)
	return nil
}

// newRotateWriter 按 RotationDays 切割，保留 MaxAgeDays 天
func newRotateWriter(fileCfg config.LogFileConfig, serviceName string) (io.Writer, error) {
	dir := fileCfg.Dir
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	name := fileCfg.Filename
	if name == "" {
		name = serviceName
	}
	if name == "" {
		name = "app"
	}
	maxAge := max(fileCfg.MaxAgeDays, 1)
	rotation := max(fileCfg.RotationDays, 1)

	w, err := rotatelogs.New(
		filepath.Join(dir, name+".%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(dir, name+".log")),
		rotatelogs.WithMaxAge(time.Duration(maxAge)*24*time.Hour),
		rotatelogs.WithRotationTime(time.Duration(rotation)*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("设置日志输出失败: %w", err)
	}
	return w, nil
}
