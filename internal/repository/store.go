package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store собирает репозитории над одним *gorm.DB. Внутри InTx все они
// работают в одной транзакции.
type Store struct {
	db *gorm.DB

	Users    UserRepository
	Workers  WorkerRepository
	Services ServiceRepository
	Bookings BookingRepository
	Payments PaymentRepository
	Events   EventRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Users:    NewGormUserRepository(db),
		Workers:  NewGormWorkerRepository(db),
		Services: NewGormServiceRepository(db),
		Bookings: NewGormBookingRepository(db),
		Payments: NewGormPaymentRepository(db),
		Events:   NewGormEventRepository(db),
	}
}

// InTx выполняет fn в транзакции; ошибка из fn откатывает всё.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Ping проверяет соединение с базой.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
