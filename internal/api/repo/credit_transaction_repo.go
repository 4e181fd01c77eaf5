package repo

import (
	"clipflow"
	"clipflow/internal/api/models"

	"gorm.io/gorm"
)

type CreditTransactionRepository struct {
	Db *gorm.DB
}

func NewCreditTransactionRepository() *CreditTransactionRepository {
	return &CreditTransactionRepository{Db: clipflow.DB}
}

func (slf *CreditTransactionRepository) Create(tx *models.CreditTransaction) error {
	return slf.Db.Create(tx).Error
}

// FindAllByUser retrieves a page of a user's transactions, newest first
func (slf *CreditTransactionRepository) FindAllByUser(userID string, limit, offset int) ([]models.CreditTransaction, error) {
	var txs []models.CreditTransaction
	err := slf.Db.
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	return txs, err
}
