package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей сервиса заказов.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Role{},
		&UserRole{},
		&Service{},
		&Worker{},
		&WorkerService{},
		&Booking{},
		&TariffItem{},
		&GatewayOrder{},
		&WorkerEarning{},
		&Review{},
		&Event{},
	)
}
