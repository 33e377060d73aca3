package database

import (
	"github.com/robalyx/chatguard/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	detection *models.DetectionModel
	training  *models.TrainingModel
	message   *models.MessageModel
	audit     *models.AuditModel
	chatBan   *models.ChatBanModel
	report    *models.ReportModel
	trust     *models.TrustModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		detection: models.NewDetection(db, logger),
		training:  models.NewTraining(db, logger),
		message:   models.NewMessage(db, logger),
		audit:     models.NewAudit(db, logger),
		chatBan:   models.NewChatBan(db, logger),
		report:    models.NewReport(db, logger),
		trust:     models.NewTrust(db, logger),
	}
}

// Detection returns the detection result model repository.
func (r *Repository) Detection() *models.DetectionModel {
	return r.detection
}

// Training returns the training sample model repository.
func (r *Repository) Training() *models.TrainingModel {
	return r.training
}

// Message returns the message model repository.
func (r *Repository) Message() *models.MessageModel {
	return r.message
}

// Audit returns the audit model repository.
func (r *Repository) Audit() *models.AuditModel {
	return r.audit
}

// ChatBan returns the chat ban model repository.
func (r *Repository) ChatBan() *models.ChatBanModel {
	return r.chatBan
}

// Report returns the report model repository.
func (r *Repository) Report() *models.ReportModel {
	return r.report
}

// Trust returns the trusted user model repository.
func (r *Repository) Trust() *models.TrustModel {
	return r.trust
}
