package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"parsely-go/internal/config"
	"parsely-go/internal/export"
	"parsely-go/internal/processor"

	"github.com/spf13/pflag"
)

// 处理批量解析命令：--dir 下的文件加上位置参数中的文件
func handleBatchCommand(cfg *config.Config) {
	paths, err := collectBatchPaths(*dirPath, pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取目录失败: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "错误: 没有待解析的文件，使用 --dir 或在参数中列出文件")
		os.Exit(1)
	}

	files := make([]processor.BatchFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			// 读取失败按空文件处理，由批处理报告该文件的错误
			fmt.Fprintf(os.Stderr, "读取文件 %s 失败: %v\n", p, err)
		}
		files = append(files, processor.BatchFile{Name: filepath.Base(p), Data: data})
	}

	ctx := context.Background()
	svc := newService(ctx, cfg, nil)
	res := svc.RunBatch(ctx, files, parseOptions(cfg), *sequential)

	if *exportPath != "" {
		data, err := export.BatchXLSX(res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "导出 xlsx 失败: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败: %v\n", *exportPath, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "批处理完成: 成功 %d, 失败 %d, 缓存命中 %d, 已导出到 %s\n",
			res.Succeeded, res.Failed, res.CacheHits, *exportPath)
		return
	}
	printJSON(res)
}

// collectBatchPaths 目录下的普通文件（不递归、跳过隐藏文件）按名称排序，位置参数追加在后
func collectBatchPaths(dir string, extra []string) ([]string, error) {
	var paths []string
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
		sort.Strings(paths)
	}
	return append(paths, extra...), nil
}
