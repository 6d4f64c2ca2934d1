package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"parsely-go/internal/config"
	"parsely-go/internal/constants"
	"parsely-go/internal/processor"
	"parsely-go/internal/storage"
)

// 处理单文件解析命令
func handleParseCommand(cfg *config.Config) {
	file := readInputFile(*filePath)
	opts := parseOptions(cfg)
	ctx := context.Background()

	var store *storage.Storage
	if *save {
		if store = openLocalStore(cfg); store == nil {
			fmt.Fprintln(os.Stderr, "错误: --save 需要记录库，使用 --db 或配置 sqlite.path")
			os.Exit(1)
		}
		defer store.SQLite.Close()
	}
	svc := newService(ctx, cfg, store)

	if store != nil {
		res, err := svc.ParseUpload(ctx, file, opts, constants.SourceCLI)
		if err != nil {
			fmt.Fprintf(os.Stderr, "解析失败: %v\n", err)
			os.Exit(1)
		}
		printJSON(res)
		return
	}

	item := svc.ParseFile(ctx, file, opts)
	if item.Status != processor.BatchStatusOK {
		fmt.Fprintf(os.Stderr, "解析失败: %v\n", item.Err())
		os.Exit(1)
	}
	printJSON(item.Result().View(opts.IncludeConfidence))
}

// 处理章节切分命令，输出每个章节的类型、标题与正文
func handleSectionsCommand(cfg *config.Config) {
	file := readInputFile(*filePath)
	opts := parseOptions(cfg)
	ctx := context.Background()
	svc := newService(ctx, cfg, nil)

	item := svc.ParseFile(ctx, file, opts)
	if item.Status != processor.BatchStatusOK {
		fmt.Fprintf(os.Stderr, "解析失败: %v\n", item.Err())
		os.Exit(1)
	}
	res := item.Result()
	for _, s := range res.Sections {
		fmt.Printf("== [%d] %s", s.Ordinal, s.Type)
		if s.Heading != "" {
			fmt.Printf(" %q (%.2f)", s.Heading, s.HeadingConfidence)
		}
		fmt.Printf(" [%d:%d]\n", s.Start, s.End)
		if body := strings.TrimSpace(s.Content); body != "" {
			fmt.Println(body)
		}
	}
	if len(res.UnparsedSections) > 0 {
		fmt.Fprintf(os.Stderr, "未解析的章节: %d\n", len(res.UnparsedSections))
	}
}
