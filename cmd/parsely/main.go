package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"parsely-go/internal/config"
	appCoreLogger "parsely-go/internal/logger"
	"parsely-go/internal/processor"
	"parsely-go/internal/storage"
	"parsely-go/internal/types"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	command           = pflag.String("cmd", "parse", "执行的命令: parse, sections, batch, records, watch, sample-config")
	configPath        = pflag.StringP("config", "c", "", "配置文件路径，为空时查找当前目录的 config.yaml")
	filePath          = pflag.StringP("file", "f", "", "简历文件路径 (parse/sections)")
	dirPath           = pflag.StringP("dir", "d", "", "目录路径 (batch/watch)")
	dbPath            = pflag.String("db", "", "SQLite 记录库路径，覆盖配置中的 sqlite.path")
	save              = pflag.Bool("save", false, "parse 结果写入记录库")
	sequential        = pflag.Bool("sequential", false, "batch 顺序执行")
	exportPath        = pflag.String("export", "", "batch 结果导出为 xlsx 文件")
	includeConfidence = pflag.Bool("include-confidence", false, "输出置信度报告")
	nlpModel          = pflag.String("nlp-model", "", "实体识别模型: fast, accurate")
	recordID          = pflag.String("id", "", "records 查询单条记录")
	limit             = pflag.Int("limit", 20, "records 分页大小")
	offset            = pflag.Int("offset", 0, "records 分页偏移")
	outPath           = pflag.StringP("out", "o", "config.yaml", "sample-config 输出路径")
)

func main() {
	pflag.Parse()

	if *command == "sample-config" {
		handleSampleConfigCommand()
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	// 日志写 stderr，stdout 只输出结果
	appCoreLogger.InitWithWriter(appCoreLogger.Config{
		Level:      cfg.Logger.Level,
		Format:     "pretty",
		TimeFormat: "15:04:05",
	}, os.Stderr)

	switch *command {
	case "parse":
		handleParseCommand(cfg)
	case "sections":
		handleSectionsCommand(cfg)
	case "batch":
		handleBatchCommand(cfg)
	case "records":
		handleRecordsCommand(cfg)
	case "watch":
		handleWatchCommand(cfg)
	default:
		fmt.Fprintf(os.Stderr, "错误: 未知命令 '%s'。支持的命令: parse, sections, batch, records, watch, sample-config\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
}

func handleSampleConfigCommand() {
	if err := config.CreateSampleConfig(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "创建示例配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("示例配置已写入 %s\n", *outPath)
}

// openLocalStore 打开本地 SQLite 记录库；未配置路径时返回 nil
func openLocalStore(cfg *config.Config) *storage.Storage {
	path := cfg.SQLite.Path
	if *dbPath != "" {
		path = *dbPath
	}
	if path == "" {
		return nil
	}
	db, err := storage.NewSQLite(path, appCoreLogger.Component("sqlite"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开记录库 %s 失败: %v\n", path, err)
		os.Exit(1)
	}
	return &storage.Storage{SQLite: db}
}

func newService(ctx context.Context, cfg *config.Config, store *storage.Storage) *processor.ResumeService {
	svc, err := processor.NewServiceFromConfig(ctx, cfg, store, appCoreLogger.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化解析流水线失败: %v\n", err)
		os.Exit(1)
	}
	return svc
}

func parseOptions(cfg *config.Config) types.ParseOptions {
	raw := *nlpModel
	if raw == "" {
		raw = cfg.Pipeline.DefaultNLPModel
	}
	model, ok := types.ParseNLPModel(raw)
	if !ok {
		fmt.Fprintf(os.Stderr, "错误: 未知的 nlp-model '%s'\n", raw)
		os.Exit(1)
	}
	return types.ParseOptions{IncludeConfidence: *includeConfidence, NLPModel: model}
}

func readInputFile(path string) processor.BatchFile {
	if path == "" {
		fmt.Fprintln(os.Stderr, "错误: 必须通过 --file 提供简历文件路径")
		pflag.Usage()
		os.Exit(1)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取文件 %s 失败: %v\n", path, err)
		os.Exit(1)
	}
	return processor.BatchFile{Name: filepath.Base(path), Data: data}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "输出结果失败: %v\n", err)
		os.Exit(1)
	}
}
