package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/pool"
	"ocr-server-go/src/core/providers/vlllm"
	"ocr-server-go/src/core/utils"
	"ocr-server-go/src/extract"
	"ocr-server-go/src/history"

	// 导入所有VLLLM providers以确保init函数被调用
	_ "ocr-server-go/src/core/providers/vlllm/ollama"
	_ "ocr-server-go/src/core/providers/vlllm/openai"
)

func main() {
	imagePath := flag.String("image", "", "可选，检查通过后对该图片执行一次完整提取")
	historyLimit := flag.Int("history", 0, "可选，列出数据库中最近N条提取记录")
	flag.Parse()

	fmt.Println("=== 模型服务连通性检查 ===")

	config, path, err := configs.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("使用配置文件: %s", path)

	logger, err := utils.NewLogger(config)
	if err != nil {
		log.Fatalf("创建日志记录器失败: %v", err)
	}
	defer logger.Close()

	connConfig, err := pool.ConfigFromYAML(&config.ConnectivityCheck)
	if err != nil {
		logger.Warn("解析连通性检查配置失败，使用默认配置: %v", err)
		connConfig = pool.DefaultConnectivityConfig()
	}
	connConfig.Enabled = true

	fmt.Printf("连通性检查配置:\n")
	fmt.Printf("  超时时间: %v\n", connConfig.Timeout)
	fmt.Printf("  重试次数: %d\n", connConfig.RetryAttempts)
	fmt.Printf("  重试延迟: %v\n", connConfig.RetryDelay)

	vc, err := config.SelectedVLLM()
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Printf("\n已注册的VLLLM类型: %s\n", strings.Join(vlllm.GetRegisteredProviders(), ", "))
	fmt.Printf("选中的模型: %s (%s) %s\n", vc.ModelName, vc.Type, vc.BaseURL)

	provider, err := vlllm.Create(&vc, logger)
	if err != nil {
		log.Fatalf("创建VLLLM provider失败: %v", err)
	}
	defer provider.Cleanup()

	ctx := context.Background()
	for _, mode := range []pool.CheckMode{pool.BasicCheck, pool.FunctionalCheck} {
		checker := pool.NewHealthChecker(provider, connConfig, logger)
		fmt.Printf("\n开始执行%s检查...\n", mode)
		if err := checker.CheckVLLLM(ctx, mode); err != nil {
			fmt.Printf("❌ %s检查失败: %v\n", mode, err)
		} else {
			fmt.Printf("✅ %s检查通过！\n", mode)
		}

		for providerType, result := range checker.GetResults() {
			fmt.Printf("%s:\n", providerType)
			fmt.Printf("  成功: %v\n", result.Success)
			fmt.Printf("  耗时: %v\n", result.Duration)
			if result.Error != nil {
				fmt.Printf("  错误: %v\n", result.Error)
			}
			for key, value := range result.Details {
				fmt.Printf("    %s: %v\n", key, value)
			}
		}
	}

	if *historyLimit > 0 {
		printHistory(ctx, config.Database.URL, *historyLimit, logger)
	}

	if *imagePath == "" {
		fmt.Println("\n=== 连通性检查完成 ===")
		return
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("读取图片失败: %v", err)
	}
	service, err := extract.NewDefaultExtractService(config, logger, provider, history.NopStore{})
	if err != nil {
		log.Fatalf("创建Extract服务失败: %v", err)
	}

	fmt.Printf("\n对 %s 执行提取...\n", *imagePath)
	result, err := service.Extract(ctx, data)
	if err != nil {
		if e, ok := extract.AsError(err); ok {
			log.Fatalf("提取失败: %s", e.Pipe())
		}
		log.Fatalf("提取失败: %v", err)
	}
	if !result.OK() {
		fmt.Println(result.Reason())
		return
	}
	out, _ := json.MarshalIndent(result.Object, "", "  ")
	fmt.Printf("尝试次数: %d\n%s\n", result.Attempts, out)
}

// printHistory 输出最近的提取记录，未配置数据库时跳过
func printHistory(ctx context.Context, dsn string, limit int, logger *utils.Logger) {
	store, err := history.Open(dsn, logger)
	if err != nil {
		fmt.Printf("❌ 打开提取记录失败: %v\n", err)
		return
	}
	defer store.Close()

	gs, ok := store.(*history.GormStore)
	if !ok {
		fmt.Println("\n未配置数据库 (database.url / DATABASE_URL)，没有提取记录")
		return
	}
	records, err := gs.Recent(ctx, limit)
	if err != nil {
		fmt.Printf("❌ 查询提取记录失败: %v\n", err)
		return
	}

	fmt.Printf("\n最近 %d 条提取记录:\n", len(records))
	for _, r := range records {
		fmt.Printf("  %s %s %-8s attempts=%d %dms %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.RequestID, r.Status, r.Attempts, r.DurationMs, r.Filename)
		if r.Error != "" {
			fmt.Printf("    错误: %s\n", r.Error)
		}
	}
}
