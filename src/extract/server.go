package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/image"
	"ocr-server-go/src/core/providers"
	"ocr-server-go/src/core/utils"
	"ocr-server-go/src/history"
	"ocr-server-go/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// 上传文件的表单字段名
	formFileField = "file"
	// 500响应 detail 前缀
	detailPrefix = "Error processing image: "
)

type DefaultExtractService struct {
	logger    *utils.Logger
	config    configs.ExtractConfig
	provider  providers.VisionProvider
	processor *image.ImageProcessor
	history   history.Store
}

// NewDefaultExtractService 构造函数
func NewDefaultExtractService(config *configs.Config, logger *utils.Logger, provider providers.VisionProvider, store history.Store) (*DefaultExtractService, error) {
	if provider == nil {
		return nil, fmt.Errorf("没有可用的视觉分析模型")
	}
	vc, err := config.SelectedVLLM()
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = history.NopStore{}
	}

	extractConfig := config.Extract
	if extractConfig.Prompt == "" {
		extractConfig.Prompt = configs.DefaultPrompt
	}
	if extractConfig.MaxAttempts < 1 {
		extractConfig.MaxAttempts = 1
	}
	if extractConfig.DegradedStatus == 0 {
		extractConfig.DegradedStatus = http.StatusOK
	}

	security := vc.Security
	return &DefaultExtractService{
		logger:    logger,
		config:    extractConfig,
		provider:  provider,
		processor: image.NewImageProcessor(&security, logger),
		history:   store,
	}, nil
}

// Start 实现 ExtractService 接口，注册提取接口路由
func (s *DefaultExtractService) Start(ctx context.Context, engine *gin.Engine) error {
	engine.GET("/extract-text", s.handleGet)
	engine.POST("/extract-text", s.handlePost)
	engine.OPTIONS("/extract-text", s.handleOptions)

	s.logger.Info("Extract HTTP服务路由注册完成")
	return nil
}

// handleOptions 处理OPTIONS请求（CORS）
func (s *DefaultExtractService) handleOptions(c *gin.Context) {
	s.addCORSHeaders(c)
	c.Status(http.StatusOK)
}

// handleGet 处理GET请求（状态检查）
func (s *DefaultExtractService) handleGet(c *gin.Context) {
	s.addCORSHeaders(c)
	metrics := s.processor.GetMetrics()
	c.String(http.StatusOK, "OCR 提取接口运行正常，模型: %s，已处理图片: %d，验证失败: %d",
		s.provider.ModelName(), metrics.TotalProcessed, metrics.FailedValidations)
}

// handlePost 处理POST请求（图片文字提取）
func (s *DefaultExtractService) handlePost(c *gin.Context) {
	s.addCORSHeaders(c)

	start := time.Now()
	requestID := uuid.New().String()
	c.Header("X-Request-Id", requestID)

	record := &models.ExtractionRecord{
		RequestID: requestID,
		Model:     s.provider.ModelName(),
	}
	defer func() {
		record.DurationMs = time.Since(start).Milliseconds()
		if err := s.history.Save(context.WithoutCancel(c.Request.Context()), record); err != nil {
			s.logger.Warn("保存提取记录失败 request_id=%s: %v", requestID, err)
		}
	}()

	header, err := s.uploadedFile(c)
	if err != nil {
		record.Status = models.StatusFailed
		record.Error = err.Error()
		s.logger.Warn("请求缺少上传文件 request_id=%s: %v", requestID, err)
		status := http.StatusUnprocessableEntity
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, DetailResponse{Detail: err.Error()})
		return
	}
	record.Filename = header.Filename
	s.logger.Info("收到提取请求 request_id=%s file=%s size=%d", requestID, header.Filename, header.Size)

	data, err := readUpload(header)
	if err != nil {
		s.fail(c, record, &Error{Kind: KindUploadRead, Op: OpReadUpload, Err: err})
		return
	}
	record.Size = int64(len(data))

	result, err := s.Extract(c.Request.Context(), data)
	if err != nil {
		s.fail(c, record, err)
		return
	}
	record.Attempts = result.Attempts
	record.Format = result.Format

	if result.OK() {
		record.Status = models.StatusOK
		if raw, err := json.Marshal(result.Object); err == nil {
			record.Result = raw
		}
		c.Header("X-Extraction-Status", models.StatusOK)
		c.JSON(http.StatusOK, ExtractResponse{ExtractedJSON: result.Object})
		s.logger.Info("提取成功 request_id=%s attempts=%d", requestID, result.Attempts)
		return
	}

	reason := result.Reason()
	record.Status = models.StatusDegraded
	record.Error = reason
	c.Header("X-Extraction-Status", models.StatusDegraded)
	c.JSON(s.config.DegradedStatus, ExtractResponse{
		ExtractedJSON: reason,
		Error: &ErrorBody{
			Kind:    result.Failure.Kind,
			Op:      result.Failure.Op,
			Attempt: result.Failure.Attempt,
			Message: result.Failure.Error(),
		},
	})
	s.logger.Warn("提取降级 request_id=%s: %s", requestID, reason)
}

// Extract 校验图片、调用模型并解析回复。图片或模型错误通过 error 返回，解析失败通过 Result 返回
func (s *DefaultExtractService) Extract(ctx context.Context, data []byte) (*Result, error) {
	imageData, _, err := s.processor.Process(data)
	if err != nil {
		e := &Error{Kind: KindImageDecode, Op: OpDecodeImage, Err: err}
		s.logger.Error("%s", e.Pipe())
		return nil, e
	}

	text, err := s.complete(ctx, imageData, 1)
	if err != nil {
		return nil, err
	}

	var lastErr *Error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		object, err := ParseModelResponse(text)
		if err == nil {
			result := Success(object, attempt, text)
			result.Format = imageData.Format
			return result, nil
		}

		lastErr = &Error{Kind: KindResponseParse, Op: OpParseResponse, Attempt: attempt, Err: err}
		s.logger.Error("%s", lastErr.Pipe())

		if attempt == s.config.MaxAttempts {
			break
		}
		if s.config.RetryModelCall {
			if text, err = s.complete(ctx, imageData, attempt+1); err != nil {
				return nil, err
			}
		}
	}

	result := Failure(lastErr, s.config.MaxAttempts, text)
	result.Format = imageData.Format
	return result, nil
}

// complete 调用模型，失败时转换为 ModelServiceError
func (s *DefaultExtractService) complete(ctx context.Context, imageData image.ImageData, attempt int) (string, error) {
	text, err := s.provider.Complete(ctx, imageData, s.config.Prompt)
	if err != nil {
		e := &Error{Kind: KindModelService, Op: OpModelCall, Attempt: attempt, Err: err}
		s.logger.Error("%s", e.Pipe())
		return "", e
	}
	s.logger.Debug("模型回复 attempt=%d: %s", attempt, text)
	return text, nil
}

// uploadedFile 取出上传的文件，优先使用 file 字段，否则取第一个文件字段
func (s *DefaultExtractService) uploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	if s.config.MaxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadSize)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("解析multipart表单失败: %w", err)
	}
	if files := form.File[formFileField]; len(files) > 0 {
		return files[0], nil
	}
	for _, files := range form.File {
		if len(files) > 0 {
			return files[0], nil
		}
	}
	return nil, errors.New("缺少图片文件字段: file")
}

// readUpload 读取完整的上传内容
func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取图片数据失败: %w", err)
	}
	return data, nil
}

// fail 记录错误并返回500
func (s *DefaultExtractService) fail(c *gin.Context, record *models.ExtractionRecord, err error) {
	e, ok := AsError(err)
	if !ok {
		e = &Error{Kind: KindModelService, Op: OpModelCall, Err: err}
	}
	if e.Kind == KindUploadRead {
		s.logger.Error("%s", e.Pipe())
	}

	record.Status = models.StatusFailed
	record.Error = e.Pipe()
	if e.Attempt > 0 {
		record.Attempts = e.Attempt
	}

	c.Header("X-Extraction-Status", models.StatusFailed)
	c.JSON(http.StatusInternalServerError, DetailResponse{Detail: detailPrefix + e.Pipe()})
}

// addCORSHeaders 添加CORS头
func (s *DefaultExtractService) addCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Headers", "content-type")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Expose-Headers", "X-Request-Id, X-Extraction-Status")
}

// Cleanup 清理资源
func (s *DefaultExtractService) Cleanup() error {
	if err := s.provider.Cleanup(); err != nil {
		s.logger.Warn("清理VLLLM provider失败: %v", err)
	}
	s.logger.Info("Extract服务清理完成")
	return nil
}
