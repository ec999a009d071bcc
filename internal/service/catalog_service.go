package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/repository"
)

// CatalogService — виды услуг и исполнители, которые их оказывают.
type CatalogService struct {
	store *repository.Store
}

func NewCatalogService(store *repository.Store) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) ListServices(ctx context.Context, limit, offset int) ([]model.Service, int64, error) {
	return s.store.Services.List(ctx, true, limit, offset)
}

// ListWorkers — исполнители; serviceID == uuid.Nil без фильтра.
func (s *CatalogService) ListWorkers(ctx context.Context, serviceID uuid.UUID) ([]model.Worker, error) {
	return s.store.Workers.List(ctx, serviceID)
}

// AddOffer — исполнитель берёт услугу по своей цене.
func (s *CatalogService) AddOffer(ctx context.Context, actor Actor, serviceID uuid.UUID, charge int64) (*model.WorkerService, error) {
	if !actor.IsWorker() {
		return nil, ErrForbidden
	}
	if charge < 0 {
		return nil, invalidArg("charge must not be negative")
	}
	w, err := s.store.Workers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound("worker", err)
	}
	svc, err := s.store.Services.GetActive(ctx, serviceID)
	if err != nil {
		return nil, notFound("service", err)
	}
	if charge == 0 {
		charge = svc.BaseCost
	}

	offer := &model.WorkerService{WorkerID: w.ID, ServiceID: svc.ID, Charge: charge, Service: svc}
	if err := s.store.Workers.AddOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("add offer: %w", err)
	}
	return offer, nil
}

type catalogFile struct {
	Services []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		BaseCost    int64  `yaml:"base_cost"`
	} `yaml:"services"`
}

// SeedCatalog загружает справочник услуг из YAML. Уже существующие по имени пропускаются.
func (s *CatalogService) SeedCatalog(ctx context.Context, r io.Reader) (int, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode catalog: %w", err)
	}

	names := make([]string, 0, len(file.Services))
	for _, item := range file.Services {
		names = append(names, item.Name)
	}
	known, err := s.store.Services.ExistingNames(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("lookup services: %w", err)
	}

	created := 0
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		for _, item := range file.Services {
			name := strings.TrimSpace(item.Name)
			if name == "" || known[strings.ToLower(name)] {
				continue
			}
			svc := &model.Service{
				Name:        name,
				Description: strings.TrimSpace(item.Description),
				BaseCost:    item.BaseCost,
				IsActive:    true,
			}
			if err := tx.Services.Create(ctx, svc); err != nil {
				return fmt.Errorf("create service %q: %w", name, err)
			}
			known[strings.ToLower(name)] = true
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
