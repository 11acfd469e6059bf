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

// NodeService управляет деревом файлов и папок
type NodeService struct {
	nodeRepo    *repository.NodeRepository
	versionRepo *repository.VersionRepository
	permissions *PermissionService
	quotas      *StorageQuotaService
	storage     s3.Storage
}

func NewNodeService(
	nodeRepo *repository.NodeRepository,
	versionRepo *repository.VersionRepository,
	permissions *PermissionService,
	quotas *StorageQuotaService,
	storage s3.Storage,
) *NodeService {
	return &NodeService{
		nodeRepo:    nodeRepo,
		versionRepo: versionRepo,
		permissions: permissions,
		quotas:      quotas,
		storage:     storage,
	}
}

// resolveParent проверяет, что родитель существует, является папкой и
// доступен для создания. Возвращает nil для корня.
func (s *NodeService) resolveParent(ctx context.Context, accountID string, parentID *uuid.UUID) (*domain.Node, error) {
	if parentID == nil {
		return nil, nil
	}

	parent, err := s.permissions.ResolveNode(ctx, accountID, *parentID, OperationCreate)
	if err != nil {
		return nil, err
	}

	if !parent.IsFolder() {
		return nil, fmt.Errorf("%w: parent %s is not a folder", domain.ErrInvalidOperation, *parentID)
	}

	return parent, nil
}

// CreateFolder создает папку. Внутри расшаренной папки с правом edit
// владельцем новой папки становится владелец родителя.
func (s *NodeService) CreateFolder(ctx context.Context, accountID, name string, parentID *uuid.UUID) (*domain.Node, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", domain.ErrInvalidOperation)
	}

	parent, err := s.resolveParent(ctx, accountID, parentID)
	if err != nil {
		return nil, err
	}

	ownerID := accountID
	if parent != nil {
		ownerID = parent.OwnerID
	}

	node := &domain.Node{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     name,
		Kind:     domain.NodeKindFolder,
	}

	if err := s.nodeRepo.Create(ctx, node); err != nil {
		return nil, err
	}

	log.Printf("[CreateFolder] Created folder %s (%s) for owner %s", node.Name, node.ID, ownerID)

	return node, nil
}

// UploadFile создает файл с первой версией. Содержимое уходит в S3,
// метаданные файла и версии пишутся в одной транзакции.
func (s *NodeService) UploadFile(ctx context.Context, accountID string, upload *domain.NodeUpload, body io.Reader) (*domain.Node, error) {
	if upload.Name == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidOperation)
	}

	parent, err := s.resolveParent(ctx, accountID, upload.ParentID)
	if err != nil {
		return nil, err
	}

	ownerID := accountID
	if parent != nil {
		ownerID = parent.OwnerID
	}

	// Проверяем квоту до загрузки
	if err := s.quotas.CheckSpaceAvailable(ctx, ownerID, upload.Size); err != nil {
		return nil, err
	}

	// Предварительная проверка имени, чтобы не гонять блоб в хранилище
	// зря. Гонку страхует частичный уникальный индекс.
	taken, err := s.nodeRepo.SiblingExists(ctx, ownerID, upload.ParentID, upload.Name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: node %q already exists here", domain.ErrNameConflict, upload.Name)
	}

	nodeID := uuid.New()
	contentKey := versionContentKey(ownerID, nodeID, 1)

	if err := s.storage.Upload(ctx, contentKey, body, upload.MIMEType); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	node := &domain.Node{
		ID:             nodeID,
		OwnerID:        ownerID,
		ParentID:       upload.ParentID,
		Name:           upload.Name,
		Kind:           domain.NodeKindFile,
		MIMEType:       &upload.MIMEType,
		SizeBytes:      upload.Size,
		CurrentVersion: 1,
	}

	tx, err := s.nodeRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.nodeRepo.CreateTx(ctx, tx, node); err != nil {
		// Блоб уже загружен, метаданные не записались
		if delErr := s.storage.DeleteObject(contentKey); delErr != nil {
			log.Printf("[UploadFile] Failed to clean up orphaned object %s: %v", contentKey, delErr)
		}
		return nil, err
	}

	version := &domain.Version{
		NodeID:        nodeID,
		VersionNumber: 1,
		ContentKey:    contentKey,
		SizeBytes:     upload.Size,
		Comment:       upload.Comment,
		IsCurrent:     true,
	}

	if err := s.versionRepo.Insert(ctx, tx, version); err != nil {
		if delErr := s.storage.DeleteObject(contentKey); delErr != nil {
			log.Printf("[UploadFile] Failed to clean up orphaned object %s: %v", contentKey, delErr)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.quotas.AddUsedSpace(ctx, ownerID, upload.Size); err != nil {
		log.Printf("[UploadFile] Failed to update quota for %s: %v", ownerID, err)
	}

	log.Printf("[UploadFile] Uploaded file %s (%s), %d bytes", node.Name, node.ID, upload.Size)

	return node, nil
}

// GetNode возвращает узел, доступный для просмотра.
func (s *NodeService) GetNode(ctx context.Context, accountID string, nodeID uuid.UUID) (*domain.Node, error) {
	return s.permissions.ResolveNode(ctx, accountID, nodeID, OperationView)
}

// ListChildren возвращает содержимое папки. parentID == nil означает
// корень собственного дерева.
func (s *NodeService) ListChildren(ctx context.Context, accountID string, parentID *uuid.UUID) ([]domain.Node, error) {
	ownerID := accountID

	if parentID != nil {
		parent, err := s.permissions.ResolveNode(ctx, accountID, *parentID, OperationView)
		if err != nil {
			return nil, err
		}
		if !parent.IsFolder() {
			return nil, fmt.Errorf("%w: node %s is not a folder", domain.ErrInvalidOperation, *parentID)
		}
		ownerID = parent.OwnerID
	}

	return s.nodeRepo.GetChildren(ctx, ownerID, parentID)
}

// ListAll возвращает все узлы владельца плоским списком.
func (s *NodeService) ListAll(ctx context.Context, accountID string) ([]domain.Node, error) {
	return s.nodeRepo.GetAllByOwner(ctx, accountID)
}

// Rename переименовывает узел. Конфликт имени среди новых соседей
// отдается как ErrNameConflict.
func (s *NodeService) Rename(ctx context.Context, accountID string, nodeID uuid.UUID, newName string) (*domain.Node, error) {
	if newName == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidOperation)
	}

	node, err := s.permissions.ResolveNode(ctx, accountID, nodeID, OperationRename)
	if err != nil {
		return nil, err
	}

	if node.Name == newName {
		return node, nil
	}

	if err := s.nodeRepo.UpdateName(ctx, nodeID, newName); err != nil {
		return nil, err
	}

	node.Name = newName
	return node, nil
}

// Move перемещает узел в другую папку (nil — в корень). Проверка цикла
// и смена родителя атомарны.
func (s *NodeService) Move(ctx context.Context, accountID string, nodeID uuid.UUID, targetParentID *uuid.UUID) (*domain.Node, error) {
	if _, err := s.permissions.ResolveNode(ctx, accountID, nodeID, OperationMove); err != nil {
		return nil, err
	}

	node, err := s.nodeRepo.Move(ctx, nodeID, targetParentID)
	if err != nil {
		return nil, err
	}

	log.Printf("[Move] Moved node %s to parent %v", nodeID, targetParentID)

	return node, nil
}

// Delete удаляет узел, для папок — все поддерево. Гранты на удаленные
// узлы исчезают вместе с ними. Блобы зачищаются после коммита, ошибка
// зачистки не откатывает удаление.
func (s *NodeService) Delete(ctx context.Context, accountID string, nodeID uuid.UUID) error {
	node, err := s.permissions.ResolveOwnedNode(ctx, accountID, nodeID)
	if err != nil {
		return err
	}

	contentKeys, err := s.nodeRepo.Delete(ctx, nodeID)
	if err != nil {
		return err
	}

	for _, key := range contentKeys {
		if err := s.storage.DeleteObject(key); err != nil {
			log.Printf("[Delete] Failed to delete object %s: %v", key, err)
		}
	}

	if _, err := s.quotas.RecalculateUsedSpace(ctx, node.OwnerID); err != nil {
		log.Printf("[Delete] Failed to recalculate quota for %s: %v", node.OwnerID, err)
	}

	return nil
}

// versionContentKey строит ключ блоба версии в хранилище. Номера версий
// не переиспользуются, поэтому ключ уникален на все время жизни файла.
func versionContentKey(ownerID string, nodeID uuid.UUID, versionNumber int) string {
	return fmt.Sprintf("drive/%s/%s/v%d", ownerID, nodeID, versionNumber)
}
