package service

import (
	"context"
	"fmt"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
)

type StorageQuotaService struct {
	quotaRepo *repository.StorageQuotaRepository
}

func NewStorageQuotaService(quotaRepo *repository.StorageQuotaRepository) *StorageQuotaService {
	return &StorageQuotaService{
		quotaRepo: quotaRepo,
	}
}

func (s *StorageQuotaService) GetQuotaInfo(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	quota, err := s.quotaRepo.GetQuota(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	availableSpace := quota.TotalBytesLimit - quota.UsedBytes
	usagePercent := float64(quota.UsedBytes) / float64(quota.TotalBytesLimit) * 100

	return &domain.QuotaInfo{
		TotalSpace:     quota.TotalBytesLimit,
		UsedSpace:      quota.UsedBytes,
		AvailableSpace: availableSpace,
		UsagePercent:   usagePercent,
	}, nil
}

// CheckSpaceAvailable возвращает ErrQuotaExceeded, если загрузка
// requiredBytes не помещается в лимит владельца.
func (s *StorageQuotaService) CheckSpaceAvailable(ctx context.Context, ownerID string, requiredBytes int64) error {
	quota, err := s.quotaRepo.GetQuota(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to get quota: %w", err)
	}

	if quota.UsedBytes+requiredBytes > quota.TotalBytesLimit {
		return fmt.Errorf("%w: need %d bytes, %d available",
			domain.ErrQuotaExceeded, requiredBytes, quota.TotalBytesLimit-quota.UsedBytes)
	}

	return nil
}

func (s *StorageQuotaService) AddUsedSpace(ctx context.Context, ownerID string, delta int64) error {
	return s.quotaRepo.UpdateUsedSpace(ctx, ownerID, delta)
}

func (s *StorageQuotaService) RecalculateUsedSpace(ctx context.Context, ownerID string) (int64, error) {
	return s.quotaRepo.CalculateAndUpdateUsedSpace(ctx, ownerID)
}

func (s *StorageQuotaService) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	if newLimit < 0 {
		return fmt.Errorf("new quota limit cannot be negative")
	}
	return s.quotaRepo.UpdateQuotaLimit(ctx, ownerID, newLimit)
}
