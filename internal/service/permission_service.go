package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
)

// PermissionService представляет сервис для проверки прав доступа
type PermissionService struct {
	nodeRepo  *repository.NodeRepository
	shareRepo *repository.ShareRepository
}

// NewPermissionService создает новый экземпляр PermissionService
func NewPermissionService(
	nodeRepo *repository.NodeRepository,
	shareRepo *repository.ShareRepository,
) *PermissionService {
	return &PermissionService{
		nodeRepo:  nodeRepo,
		shareRepo: shareRepo,
	}
}

// OperationType определяет тип операции
type OperationType string

const (
	OperationView     OperationType = "view"
	OperationDownload OperationType = "download"
	OperationUpload   OperationType = "upload"
	OperationCreate   OperationType = "create"
	OperationRename   OperationType = "rename"
	OperationMove     OperationType = "move"
	OperationDelete   OperationType = "delete"
	OperationShare    OperationType = "share"
)

// requiredPermission возвращает минимальный уровень гранта для операции.
// Управление грантами и удаление узла в грантах не выражаются: они
// остаются за владельцем.
func requiredPermission(operation OperationType) (domain.Permission, bool) {
	switch operation {
	case OperationView, OperationDownload:
		return domain.PermissionRead, true
	case OperationUpload, OperationCreate, OperationRename, OperationMove:
		return domain.PermissionEdit, true
	default:
		// delete и share грантом не покрываются
		return "", false
	}
}

// ResolveNode загружает узел и проверяет право на операцию. Чужой узел
// без гранта неотличим от несуществующего: наружу уходит ErrNotFound.
func (s *PermissionService) ResolveNode(
	ctx context.Context,
	accountID string,
	nodeID uuid.UUID,
	operation OperationType,
) (*domain.Node, error) {
	node, err := s.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	// Владелец имеет полные права
	if node.OwnerID == accountID {
		return node, nil
	}

	required, shareable := requiredPermission(operation)
	if !shareable {
		return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
	}

	// Ищем грант на сам узел или на ближайшего предка
	share, err := s.shareRepo.GetEffectiveShare(ctx, nodeID, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
		}
		return nil, fmt.Errorf("failed to check share access: %w", err)
	}

	if !share.Perm.Allows(required) {
		return nil, fmt.Errorf("%w: %s requires %s access", domain.ErrForbidden, operation, required)
	}

	return node, nil
}

// ResolveOwnedNode загружает узел и требует владения. Для read-подобных
// операций чужой узел маскируется под отсутствующий.
func (s *PermissionService) ResolveOwnedNode(
	ctx context.Context,
	accountID string,
	nodeID uuid.UUID,
) (*domain.Node, error) {
	node, err := s.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if node.OwnerID != accountID {
		return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
	}

	return node, nil
}
