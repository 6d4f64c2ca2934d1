package main

import (
	"context"
	"fmt"
	"os"

	"parsely-go/internal/config"
)

// 处理记录查询命令
func handleRecordsCommand(cfg *config.Config) {
	store := openLocalStore(cfg)
	if store == nil {
		fmt.Fprintln(os.Stderr, "错误: 未配置记录库，使用 --db 或配置 sqlite.path")
		os.Exit(1)
	}
	defer store.SQLite.Close()

	ctx := context.Background()
	svc := newService(ctx, cfg, store)

	if *recordID != "" {
		rec, err := svc.GetRecord(ctx, *recordID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "查询记录失败: %v\n", err)
			os.Exit(1)
		}
		printJSON(rec)
		return
	}

	items, total, err := svc.ListRecords(ctx, *limit, *offset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询记录失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "共 %d 条记录\n", total)
	for _, rec := range items {
		fmt.Printf("%s  %-8s  %5.1f  %s  %s\n", rec.RecordID, rec.Status, rec.QualityScore,
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Filename)
	}
}
