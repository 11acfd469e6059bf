package service

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/service/s3"
)

// VersionService управляет историей версий файлов. Все мутации истории
// одного файла сериализуются блокировкой строки файла, поэтому номера
// версий растут монотонно и не переиспользуются.
type VersionService struct {
	versionRepo *repository.VersionRepository
	permissions *PermissionService
	quotas      *StorageQuotaService
	storage     s3.Storage
}

func NewVersionService(
	versionRepo *repository.VersionRepository,
	permissions *PermissionService,
	quotas *StorageQuotaService,
	storage s3.Storage,
) *VersionService {
	return &VersionService{
		versionRepo: versionRepo,
		permissions: permissions,
		quotas:      quotas,
		storage:     storage,
	}
}

func (s *VersionService) resolveFile(ctx context.Context, accountID string, nodeID uuid.UUID, operation OperationType) (*domain.Node, error) {
	node, err := s.permissions.ResolveNode(ctx, accountID, nodeID, operation)
	if err != nil {
		return nil, err
	}
	if node.IsFolder() {
		return nil, fmt.Errorf("%w: node %s is a folder", domain.ErrInvalidOperation, nodeID)
	}
	return node, nil
}

// AddVersion загружает новое содержимое файла и делает его текущей версией.
func (s *VersionService) AddVersion(ctx context.Context, accountID string, nodeID uuid.UUID, size int64, comment *string, mimeType string, body io.Reader) (*domain.Version, error) {
	node, err := s.resolveFile(ctx, accountID, nodeID, OperationUpload)
	if err != nil {
		return nil, err
	}

	if err := s.quotas.CheckSpaceAvailable(ctx, node.OwnerID, size); err != nil {
		return nil, err
	}

	tx, err := s.versionRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Номер берется из заблокированной строки: конкурентные загрузки
	// выстраиваются в очередь и не получают один номер дважды
	locked, err := s.versionRepo.LockNode(ctx, tx, nodeID)
	if err != nil {
		return nil, err
	}

	versionNumber := locked.CurrentVersion + 1
	contentKey := versionContentKey(locked.OwnerID, nodeID, versionNumber)

	if err := s.storage.Upload(ctx, contentKey, body, mimeType); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if err := s.versionRepo.DemoteCurrent(ctx, tx, nodeID); err != nil {
		return nil, err
	}

	version := &domain.Version{
		NodeID:        nodeID,
		VersionNumber: versionNumber,
		ContentKey:    contentKey,
		SizeBytes:     size,
		Comment:       comment,
		IsCurrent:     true,
	}

	if err := s.versionRepo.Insert(ctx, tx, version); err != nil {
		if delErr := s.storage.DeleteObject(contentKey); delErr != nil {
			log.Printf("[AddVersion] Failed to clean up orphaned object %s: %v", contentKey, delErr)
		}
		return nil, err
	}

	if err := s.versionRepo.UpdateNodeOnNewVersion(ctx, tx, nodeID, versionNumber, size); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.quotas.AddUsedSpace(ctx, node.OwnerID, size); err != nil {
		log.Printf("[AddVersion] Failed to update quota for %s: %v", node.OwnerID, err)
	}

	log.Printf("[AddVersion] Node %s now at version %d (%d bytes)", nodeID, versionNumber, size)

	return version, nil
}

// ListVersions возвращает историю файла от новых версий к старым.
func (s *VersionService) ListVersions(ctx context.Context, accountID string, nodeID uuid.UUID) ([]domain.Version, error) {
	if _, err := s.resolveFile(ctx, accountID, nodeID, OperationView); err != nil {
		return nil, err
	}
	return s.versionRepo.List(ctx, nodeID)
}

// Restore делает содержимое старой версии текущим: блоб копируется на
// стороне хранилища под новый ключ, история не переписывается.
func (s *VersionService) Restore(ctx context.Context, accountID string, nodeID uuid.UUID, versionNumber int) (*domain.Version, error) {
	node, err := s.resolveFile(ctx, accountID, nodeID, OperationUpload)
	if err != nil {
		return nil, err
	}

	source, err := s.versionRepo.GetByNumber(ctx, nodeID, versionNumber)
	if err != nil {
		return nil, err
	}

	if err := s.quotas.CheckSpaceAvailable(ctx, node.OwnerID, source.SizeBytes); err != nil {
		return nil, err
	}

	tx, err := s.versionRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.versionRepo.LockNode(ctx, tx, nodeID)
	if err != nil {
		return nil, err
	}

	if locked.CurrentVersion == versionNumber {
		return nil, fmt.Errorf("%w: version %d is already current", domain.ErrInvalidOperation, versionNumber)
	}

	newNumber := locked.CurrentVersion + 1
	contentKey := versionContentKey(locked.OwnerID, nodeID, newNumber)

	if err := s.storage.CopyObject(ctx, source.ContentKey, contentKey); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if err := s.versionRepo.DemoteCurrent(ctx, tx, nodeID); err != nil {
		return nil, err
	}

	comment := fmt.Sprintf("Restored from version %d", versionNumber)
	version := &domain.Version{
		NodeID:        nodeID,
		VersionNumber: newNumber,
		ContentKey:    contentKey,
		SizeBytes:     source.SizeBytes,
		Comment:       &comment,
		IsCurrent:     true,
	}

	if err := s.versionRepo.Insert(ctx, tx, version); err != nil {
		if delErr := s.storage.DeleteObject(contentKey); delErr != nil {
			log.Printf("[Restore] Failed to clean up orphaned object %s: %v", contentKey, delErr)
		}
		return nil, err
	}

	if err := s.versionRepo.UpdateNodeOnNewVersion(ctx, tx, nodeID, newNumber, source.SizeBytes); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.quotas.AddUsedSpace(ctx, node.OwnerID, source.SizeBytes); err != nil {
		log.Printf("[Restore] Failed to update quota for %s: %v", node.OwnerID, err)
	}

	log.Printf("[Restore] Node %s restored version %d as version %d", nodeID, versionNumber, newNumber)

	return version, nil
}

// DeleteVersion безвозвратно удаляет старую версию. Текущая версия
// не удаляется: сначала нужно сделать текущей другую.
func (s *VersionService) DeleteVersion(ctx context.Context, accountID string, nodeID uuid.UUID, versionNumber int) error {
	node, err := s.permissions.ResolveOwnedNode(ctx, accountID, nodeID)
	if err != nil {
		return err
	}
	if node.IsFolder() {
		return fmt.Errorf("%w: node %s is a folder", domain.ErrInvalidOperation, nodeID)
	}

	if node.CurrentVersion == versionNumber {
		return fmt.Errorf("%w: cannot delete the current version", domain.ErrInvalidOperation)
	}

	version, err := s.versionRepo.GetByNumber(ctx, nodeID, versionNumber)
	if err != nil {
		return err
	}

	contentKey, err := s.versionRepo.Delete(ctx, nodeID, versionNumber)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteObject(contentKey); err != nil {
		log.Printf("[DeleteVersion] Failed to delete object %s: %v", contentKey, err)
	}

	if err := s.quotas.AddUsedSpace(ctx, node.OwnerID, -version.SizeBytes); err != nil {
		log.Printf("[DeleteVersion] Failed to update quota for %s: %v", node.OwnerID, err)
	}

	return nil
}

// OpenVersion открывает содержимое версии для чтения. versionNumber == 0
// означает текущую версию.
func (s *VersionService) OpenVersion(ctx context.Context, accountID string, nodeID uuid.UUID, versionNumber int) (*domain.Node, *domain.Version, s3.S3Object, error) {
	node, err := s.resolveFile(ctx, accountID, nodeID, OperationDownload)
	if err != nil {
		return nil, nil, nil, err
	}

	var version *domain.Version
	if versionNumber == 0 {
		version, err = s.versionRepo.GetCurrent(ctx, nodeID)
	} else {
		version, err = s.versionRepo.GetByNumber(ctx, nodeID, versionNumber)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	object, err := s.storage.GetObject(ctx, version.ContentKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return node, version, object, nil
}

// OpenVersionRange открывает диапазон байт текущей версии. Используется
// для докачки и проигрывания медиа по Range-запросам.
func (s *VersionService) OpenVersionRange(ctx context.Context, accountID string, nodeID uuid.UUID, start, end int64) (*domain.Node, *domain.Version, s3.S3Object, error) {
	node, err := s.resolveFile(ctx, accountID, nodeID, OperationDownload)
	if err != nil {
		return nil, nil, nil, err
	}

	version, err := s.versionRepo.GetCurrent(ctx, nodeID)
	if err != nil {
		return nil, nil, nil, err
	}

	if end <= 0 || end >= version.SizeBytes {
		end = version.SizeBytes - 1
	}
	if start < 0 || start > end {
		return nil, nil, nil, fmt.Errorf("%w: invalid byte range", domain.ErrInvalidOperation)
	}

	object, err := s.storage.GetObjectRange(ctx, version.ContentKey, start, end)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return node, version, object, nil
}
