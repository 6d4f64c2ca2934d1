package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"parsely-go/internal/config"
	"parsely-go/internal/constants"
	appCoreLogger "parsely-go/internal/logger"
	"parsely-go/internal/processor"
	"parsely-go/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce 同一文件连续事件合并的等待时间，文件写完后才解析
const watchDebounce = 300 * time.Millisecond

// watchEvent watch 模式下每个文件输出一行
type watchEvent struct {
	File      string  `json:"file"`
	Status    string  `json:"status"`
	RecordID  string  `json:"record_id,omitempty"`
	Duplicate bool    `json:"duplicate,omitempty"`
	Quality   float64 `json:"resume_quality_score,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// 处理目录监听命令：放入目录的文件被解析，配置了记录库时同时归档
func handleWatchCommand(cfg *config.Config) {
	if *dirPath == "" {
		fmt.Fprintln(os.Stderr, "错误: watch 需要 --dir")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := openLocalStore(cfg)
	if store != nil {
		defer store.SQLite.Close()
	}
	svc := newService(ctx, cfg, store)
	opts := parseOptions(cfg)
	out := json.NewEncoder(os.Stdout)
	var outMu sync.Mutex

	handle := func(path string) {
		ev := parseDroppedFile(ctx, svc, path, opts, store != nil)
		outMu.Lock()
		defer outMu.Unlock()
		_ = out.Encode(ev)
	}

	w, err := newDropWatcher(*dirPath, watchDebounce, handle, appCoreLogger.Component("watch"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "监听目录 %s 失败: %v\n", *dirPath, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "正在监听 %s，按 Ctrl+C 退出\n", *dirPath)
	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "监听出错: %v\n", err)
		os.Exit(1)
	}
}

func parseDroppedFile(ctx context.Context, svc *processor.ResumeService, path string, opts types.ParseOptions, archive bool) watchEvent {
	ev := watchEvent{File: filepath.Base(path), Status: processor.BatchStatusError}
	data, err := os.ReadFile(path)
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	file := processor.BatchFile{Name: ev.File, Data: data}

	var item processor.BatchItemResult
	if archive {
		res, err := svc.ParseUpload(ctx, file, opts, constants.SourceCLI)
		if err != nil {
			ev.Error = err.Error()
			return ev
		}
		ev.RecordID, ev.Duplicate, item = res.RecordID, res.Duplicate, res.Item
	} else {
		item = svc.ParseFile(ctx, file, opts)
	}

	ev.Status = item.Status
	ev.Error = item.Error
	if item.Parsed != nil {
		ev.Quality = item.Parsed.ResumeQualityScore
	}
	return ev
}

// dropWatcher 监听目录中新建或写入的文件，按文件去抖后回调
type dropWatcher struct {
	watcher *fsnotify.Watcher
	delay   time.Duration
	handle  func(path string)
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func newDropWatcher(dir string, delay time.Duration, handle func(path string), logger zerolog.Logger) (*dropWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &dropWatcher{
		watcher: fw,
		delay:   delay,
		handle:  handle,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run 阻塞直到 ctx 取消，返回前等待进行中的回调结束
func (w *dropWatcher) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		for path, t := range w.pending {
			if t.Stop() {
				w.wg.Done()
			}
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.wg.Wait()
	}()
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
				continue
			}
			w.schedule(ev.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("目录监听错误")
		}
	}
}

func (w *dropWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.delay)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.delay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.handle(path)
	})
	w.pending[path] = t
}
