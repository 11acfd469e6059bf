package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
)

const (
	defaultRecentSharedLimit = 5
	maxRecentSharedLimit     = 50
)

// ShareService управляет грантами доступа к узлам
type ShareService struct {
	shareRepo   *repository.ShareRepository
	accountRepo *repository.AccountRepository
	permissions *PermissionService
}

func NewShareService(
	shareRepo *repository.ShareRepository,
	accountRepo *repository.AccountRepository,
	permissions *PermissionService,
) *ShareService {
	return &ShareService{
		shareRepo:   shareRepo,
		accountRepo: accountRepo,
		permissions: permissions,
	}
}

// Grant выдает грант на узел по email получателя. Выдавать и менять
// гранты может только владелец. Повторная выдача тому же получателю
// обновляет уровень доступа существующего гранта.
func (s *ShareService) Grant(ctx context.Context, accountID string, nodeID uuid.UUID, granteeEmail string, perm domain.Permission) (*domain.Share, error) {
	if !perm.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", domain.ErrInvalidOperation, perm)
	}

	node, err := s.permissions.ResolveOwnedNode(ctx, accountID, nodeID)
	if err != nil {
		return nil, err
	}

	grantee, err := s.accountRepo.GetByEmail(ctx, granteeEmail)
	if err != nil {
		return nil, err
	}

	if grantee.ID == accountID {
		return nil, fmt.Errorf("%w: cannot share a node with yourself", domain.ErrInvalidOperation)
	}

	share := &domain.Share{
		ID:        uuid.New(),
		NodeID:    node.ID,
		OwnerID:   accountID,
		GranteeID: grantee.ID,
		Perm:      perm,
	}

	if err := s.shareRepo.Upsert(ctx, share); err != nil {
		return nil, err
	}

	log.Printf("[Grant] Node %s shared with %s (%s)", nodeID, grantee.Email, perm)

	return share, nil
}

// Revoke снимает грант получателя. Отзыв несуществующего гранта
// проходит без ошибки.
func (s *ShareService) Revoke(ctx context.Context, accountID string, nodeID uuid.UUID, granteeEmail string) error {
	if _, err := s.permissions.ResolveOwnedNode(ctx, accountID, nodeID); err != nil {
		return err
	}

	grantee, err := s.accountRepo.GetByEmail(ctx, granteeEmail)
	if err != nil {
		return err
	}

	return s.shareRepo.Revoke(ctx, nodeID, grantee.ID)
}

// ListShares возвращает гранты на узел. Видит их только владелец.
func (s *ShareService) ListShares(ctx context.Context, accountID string, nodeID uuid.UUID) ([]domain.Share, error) {
	if _, err := s.permissions.ResolveOwnedNode(ctx, accountID, nodeID); err != nil {
		return nil, err
	}

	return s.shareRepo.ListByNode(ctx, nodeID)
}

// SharedWithMe возвращает все узлы, доступные аккаунту по грантам,
// включая содержимое расшаренных папок.
func (s *ShareService) SharedWithMe(ctx context.Context, accountID string) ([]domain.SharedNode, error) {
	return s.shareRepo.ListSharedWithMe(ctx, accountID)
}

// RecentShared возвращает последние узлы, расшаренные аккаунту.
func (s *ShareService) RecentShared(ctx context.Context, accountID string, limit int) ([]domain.SharedNode, error) {
	if limit <= 0 {
		limit = defaultRecentSharedLimit
	}
	if limit > maxRecentSharedLimit {
		limit = maxRecentSharedLimit
	}

	return s.shareRepo.ListRecentShared(ctx, accountID, limit)
}
