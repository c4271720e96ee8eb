package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/pool"
	"ocr-server-go/src/core/providers/vlllm"
	"ocr-server-go/src/core/utils"
	"ocr-server-go/src/extract"
	"ocr-server-go/src/history"

	// 导入所有VLLLM providers以确保init函数被调用
	_ "ocr-server-go/src/core/providers/vlllm/ollama"
	_ "ocr-server-go/src/core/providers/vlllm/openai"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 加载配置,默认使用.config.yaml
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	if configPath == "" {
		configPath = "(内置默认配置)"
	}
	logger.Info("日志系统初始化成功, 配置文件路径: %s", configPath)

	return config, logger, nil
}

// CheckConnectivity 启动时检查模型服务，失败只记录警告
func CheckConnectivity(ctx context.Context, config *configs.Config, provider *vlllm.Provider, logger *utils.Logger) {
	connConfig, err := pool.ConfigFromYAML(&config.ConnectivityCheck)
	if err != nil {
		logger.Warn("解析连通性检查配置失败，使用默认配置: %v", err)
		connConfig = pool.DefaultConnectivityConfig()
	}

	checker := pool.NewHealthChecker(provider, connConfig, logger)
	if err := checker.CheckVLLLM(ctx, connConfig.Mode()); err != nil {
		logger.Warn("模型服务暂不可用，接口调用将返回500直到服务恢复: %v", err)
	}
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, service extract.ExtractService, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	// 初始化Gin引擎
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.SetTrustedProxies(nil)

	if err := service.Start(groupCtx, router); err != nil {
		logger.Error("Extract 服务启动失败: %v", err)
		return nil, err
	}

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g.Go(func() error {
		logger.Info("Gin 服务已启动，访问地址: http://%s", addr)

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败: %v", err)
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	// 等待信号，或服务自行退出（例如端口被占用）
	select {
	case sig := <-sigChan:
		logger.Info("接收到系统信号: %v，开始优雅关闭服务", sig)
	case err := <-done:
		cancel()
		return err
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		logger.Info("所有服务已优雅关闭")
		return nil
	case <-time.After(15 * time.Second):
		return fmt.Errorf("服务关闭超时")
	}
}

func run() int {
	// 先加载 .env，使其中的变量参与配置覆盖
	envErr := godotenv.Load()

	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		return 1
	}
	defer logger.Close()

	if envErr != nil {
		logger.Warn("未找到 .env 文件，使用系统环境变量")
	}

	store, err := history.Open(config.Database.URL, logger)
	if err != nil {
		logger.Error("数据库连接失败: %v", err)
		return 1
	}
	defer store.Close()

	vc, err := config.SelectedVLLM()
	if err != nil {
		logger.Error("%v", err)
		return 1
	}
	provider, err := vlllm.Create(&vc, logger)
	if err != nil {
		logger.Error("VLLLM provider 初始化失败: %v", err)
		return 1
	}

	service, err := extract.NewDefaultExtractService(config, logger, provider, store)
	if err != nil {
		logger.Error("Extract 服务初始化失败: %v", err)
		return 1
	}
	defer service.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	CheckConnectivity(ctx, config, provider, logger)

	g, groupCtx := errgroup.WithContext(ctx)
	if _, err := StartHttpServer(config, logger, service, g, groupCtx); err != nil {
		logger.Error("启动服务失败: %v", err)
		return 1
	}

	if err := GracefulShutdown(cancel, logger, g); err != nil {
		logger.Error("服务运行或关闭过程中出现错误: %v", err)
		return 1
	}

	logger.Info("程序已成功退出")
	return 0
}

func main() {
	os.Exit(run())
}
