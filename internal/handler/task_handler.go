package handler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/enroll-engine/internal/domain"
	"github.com/kursadbilgin/enroll-engine/internal/ingest"
)

const (
	rosterFormField         = "roster"
	estimatedSecondsPerItem = 30
)

type TaskService interface {
	Submit(records []domain.Record, affiliation domain.AffiliationType, affiliator string) (string, error)
	GetStatus(id string) (domain.TaskSnapshot, error)
	List() []domain.TaskSnapshot
	Delete(id string) error
	ResultPath(id string) (string, error)
}

type TaskHandler struct {
	service TaskService
	logger  *zap.Logger
}

func NewTaskHandler(service TaskService, logger *zap.Logger) (*TaskHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("task service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{service: service, logger: logger}, nil
}

func RegisterTaskRoutes(router fiber.Router, service TaskService, logger *zap.Logger) error {
	h, err := NewTaskHandler(service, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/tasks", h.CreateTask)
	v1.Get("/tasks", h.ListTasks)
	v1.Get("/tasks/:id", h.GetTask)
	v1.Delete("/tasks/:id", h.DeleteTask)
	v1.Get("/tasks/:id/result", h.DownloadResult)

	return nil
}

type taskSummaryResponse struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	Affiliation      string    `json:"affiliation"`
	Affiliator       string    `json:"affiliator"`
	TotalRecords     int       `json:"totalRecords"`
	ProcessedRecords int       `json:"processedRecords"`
	ProgressPercent  int       `json:"progressPercent"`
	CreatedAt        time.Time `json:"createdAt"`
}

type taskStatusResponse struct {
	taskSummaryResponse
	SuccessfulRecords         int      `json:"successfulRecords"`
	ErrorRecords              int      `json:"errorRecords"`
	SuccessRate               float64  `json:"successRate"`
	RemainingRecords          int      `json:"remainingRecords"`
	EstimatedRemainingMinutes float64  `json:"estimatedRemainingMinutes"`
	CurrentlyProcessing       string   `json:"currentlyProcessing,omitempty"`
	Message                   string   `json:"message,omitempty"`
	Logs                      []string `json:"logs"`
}

type createTaskResponse struct {
	TaskID           string  `json:"taskId"`
	Status           string  `json:"status"`
	TotalRecords     int     `json:"totalRecords"`
	StatusURL        string  `json:"statusUrl"`
	EstimatedMinutes float64 `json:"estimatedMinutes"`
}

type listTasksResponse struct {
	Data  []taskSummaryResponse `json:"data"`
	Total int                   `json:"total"`
}

// CreateTask accepts a multipart roster upload plus affiliation and
// affiliator form values, and schedules a new task.
func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	affiliation, err := domain.ParseAffiliationFromString(c.FormValue("affiliation"))
	if err != nil {
		return toHTTPError(err)
	}
	affiliator := strings.TrimSpace(c.FormValue("affiliator"))
	if affiliator == "" {
		return toHTTPError(fmt.Errorf("%w: affiliator is required", domain.ErrValidation))
	}

	fileHeader, err := c.FormFile(rosterFormField)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "roster file upload is required")
	}
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".xlsx", ".xls":
	default:
		return fiber.NewError(fiber.StatusBadRequest, "roster must be an .xlsx or .xls workbook")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "roster file could not be opened")
	}
	defer file.Close()

	records, err := ingest.ReadRoster(file, h.logger)
	if err != nil {
		return toHTTPError(err)
	}

	taskID, err := h.service.Submit(records, affiliation, affiliator)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(createTaskResponse{
		TaskID:           taskID,
		Status:           string(domain.TaskPending),
		TotalRecords:     len(records),
		StatusURL:        fmt.Sprintf("/v1/tasks/%s", taskID),
		EstimatedMinutes: float64(len(records)*estimatedSecondsPerItem) / 60,
	})
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	snap, err := h.service.GetStatus(id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toStatusResponse(snap))
}

func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	snapshots := h.service.List()

	data := make([]taskSummaryResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		data = append(data, toSummaryResponse(snap))
	}

	return c.Status(fiber.StatusOK).JSON(listTasksResponse{
		Data:  data,
		Total: len(data),
	})
}

func (h *TaskHandler) DeleteTask(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"taskId":  id,
		"deleted": true,
	})
}

func (h *TaskHandler) DownloadResult(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	path, err := h.service.ResultPath(id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Download(path, fmt.Sprintf("results_%s.xlsx", id))
}

func toSummaryResponse(snap domain.TaskSnapshot) taskSummaryResponse {
	return taskSummaryResponse{
		ID:               snap.ID,
		Status:           string(snap.Status),
		Affiliation:      string(snap.Affiliation),
		Affiliator:       snap.Affiliator,
		TotalRecords:     snap.TotalRecords,
		ProcessedRecords: snap.ProcessedRecords,
		ProgressPercent:  snap.ProgressPercent,
		CreatedAt:        snap.CreatedAt,
	}
}

func toStatusResponse(snap domain.TaskSnapshot) taskStatusResponse {
	logs := snap.Logs
	if logs == nil {
		logs = []string{}
	}
	return taskStatusResponse{
		taskSummaryResponse:       toSummaryResponse(snap),
		SuccessfulRecords:         snap.SuccessfulRecords,
		ErrorRecords:              snap.ErrorRecords,
		SuccessRate:               snap.SuccessRate,
		RemainingRecords:          snap.RemainingRecords,
		EstimatedRemainingMinutes: snap.EstimatedRemainingMinutes,
		CurrentlyProcessing:       snap.CurrentlyProcessing,
		Message:                   snap.Message,
		Logs:                      logs,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
