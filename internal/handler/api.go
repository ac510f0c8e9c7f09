package handler

import (
	"github.com/stridelog/internal/logger"
	"github.com/stridelog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	wizard     *service.WizardService
	goals      *service.GoalService
	categories *service.CategoryService
	checkIns   *service.CheckInService
	trash      *service.TrashService
	system     *service.SystemSettingService
	inference  *service.InferenceService
	motivation *service.MotivationService
	log        logger.Logger
}

// Services 汇集 NewAPI 所需的服务依赖，由 main 装配。
type Services struct {
	Wizard     *service.WizardService
	Goals      *service.GoalService
	Categories *service.CategoryService
	CheckIns   *service.CheckInService
	Trash      *service.TrashService
	System     *service.SystemSettingService
	Inference  *service.InferenceService
	Motivation *service.MotivationService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, services Services, log logger.Logger) *API {
	if log == nil {
		log = logger.NewNop()
	}

	return &API{
		db:         db,
		wizard:     services.Wizard,
		goals:      services.Goals,
		categories: services.Categories,
		checkIns:   services.CheckIns,
		trash:      services.Trash,
		system:     services.System,
		inference:  services.Inference,
		motivation: services.Motivation,
		log:        log,
	}
}

// DB exposes the underlying gorm instance for test setup paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
