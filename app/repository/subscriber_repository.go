package repository

import (
	"github.com/StreamPassApp/StreamPass/app/models"
	"gorm.io/gorm"
)

type subscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository creates a subscriber repository backed by GORM.
func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) GetByEmail(email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.db.Where("email = ?", email).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriberRepository) MarkExpired(email string) error {
	return r.db.Model(&models.Subscriber{}).
		Where("email = ? AND subscribed = ?", email, true).
		Update("subscribed", false).Error
}
