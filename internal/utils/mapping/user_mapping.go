package mapping

import (
	"encoding/json"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/models"
)

func ToModelUser(d domain.User) models.User {
	roles := make([]string, len(d.Roles))
	for i, r := range d.Roles {
		roles[i] = string(r)
	}
	return models.User{
		UserID:        d.UserID,
		Name:          d.Name,
		Email:         d.Email,
		DepartmentID:  d.DepartmentID,
		Roles:         roles,
		ApprovalLimit: d.ApprovalLimit,
		IsActive:      d.IsActive,
		AuditFields:   ToModelAuditFields(d.AuditFields),
		DeletedAt:     d.DeletedAt,
	}
}

func ToDomainUser(m models.User) domain.User {
	roles := make([]domain.Role, len(m.Roles))
	for i, r := range m.Roles {
		roles[i] = domain.Role(r)
	}
	return domain.User{
		UserID:        m.UserID,
		Name:          m.Name,
		Email:         m.Email,
		DepartmentID:  m.DepartmentID,
		Roles:         roles,
		ApprovalLimit: m.ApprovalLimit,
		IsActive:      m.IsActive,
		AuditFields:   ToDomainAuditFields(m.AuditFields),
		DeletedAt:     m.DeletedAt,
	}
}

func ToDomainUserSlice(ms []models.User) []domain.User {
	ds := make([]domain.User, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainUser(m)
	}
	return ds
}

// ToModelAuditLog encodes the metadata map as JSON.
func ToModelAuditLog(d domain.AuditLog) (models.AuditLog, error) {
	var meta []byte
	if len(d.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(d.Metadata); err != nil {
			return models.AuditLog{}, err
		}
	}
	return models.AuditLog{
		AuditID:     d.AuditID,
		ActorID:     d.ActorID,
		Action:      d.Action,
		Status:      string(d.Status),
		ModelType:   d.ModelType,
		ModelID:     d.ModelID,
		Description: d.Description,
		Metadata:    meta,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func ToDomainAuditLog(m models.AuditLog) (domain.AuditLog, error) {
	d := domain.AuditLog{
		AuditID:     m.AuditID,
		ActorID:     m.ActorID,
		Action:      m.Action,
		Status:      domain.AuditStatus(m.Status),
		ModelType:   m.ModelType,
		ModelID:     m.ModelID,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &d.Metadata); err != nil {
			return domain.AuditLog{}, err
		}
	}
	return d, nil
}
