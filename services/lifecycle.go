package services

import (
	"context"
	"errors"

	"greenexchange/models"
	"greenexchange/store"
	"greenexchange/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	verifyChange = models.StatusChange{From: models.StatusPending, To: models.StatusVerified}
	buyChange    = models.StatusChange{From: models.StatusVerified, To: models.StatusSold}
	resellChange = models.StatusChange{From: models.StatusSold, To: models.StatusVerified, ClearOwner: true}
)

// TreeService drives the tree lifecycle:
//
//	plant -> Pending -> verify -> Verified -> buy -> Sold -> resell -> Verified
//
// Every operation that touches both a tree and a user runs in one store
// transaction, and every status change is conditional on the current status.
type TreeService struct {
	store   store.Store
	mailer  utils.Mailer
	metrics *utils.Metrics
	logger  *zap.Logger
	baseURL string
}

// Profile is a user together with the trees behind their id lists.
type Profile struct {
	User         *models.User
	Planted      []models.Tree
	Certificates []models.Tree
}

// StatusCount is the number of trees in one status.
type StatusCount struct {
	Status models.TreeStatus
	Count  int64
}

// Stats summarises the marketplace.
type Stats struct {
	TotalTrees int64
	TotalUsers int64
	ByStatus   []StatusCount
}

func NewTreeService(st store.Store, mailer utils.Mailer, metrics *utils.Metrics, logger *zap.Logger, baseURL string) *TreeService {
	return &TreeService{
		store:   st,
		mailer:  mailer,
		metrics: metrics,
		logger:  logger,
		baseURL: baseURL,
	}
}

// Plant lists a new Pending tree and records it on the planter.
func (s *TreeService) Plant(ctx context.Context, planterID primitive.ObjectID, in PlantInput, imageRef string) (*models.Tree, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	tree := &models.Tree{
		Adhar:     in.Adhar,
		State:     in.State,
		Distric:   in.Distric,
		PinCode:   in.PinCode,
		Image:     imageRef,
		Price:     in.Price,
		Status:    models.StatusPending,
		PlantedBy: planterID,
	}
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		tree.ID = primitive.NilObjectID
		if _, err := s.store.Users().FindByID(ctx, planterID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnauthenticated
			}
			return persistence("find planter", err)
		}
		if err := s.store.Trees().Create(ctx, tree); err != nil {
			return persistence("create tree", err)
		}
		if err := s.store.Users().AppendTree(ctx, planterID, tree.ID); err != nil {
			return persistence("append planted tree", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TreeTransitions.WithLabelValues("plant->" + string(models.StatusPending)).Inc()
	s.logger.Info("tree planted", zap.String("tree_id", tree.ID.Hex()), zap.String("planter_id", planterID.Hex()))
	return tree, nil
}

// Verify is the out-of-band Pending -> Verified step. It is not reachable
// over HTTP.
func (s *TreeService) Verify(ctx context.Context, treeID primitive.ObjectID) (*models.Tree, error) {
	err := s.store.Trees().Transition(ctx, treeID, verifyChange)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return nil, ErrNotVerifiable
	case err != nil:
		return nil, persistence("verify tree", err)
	}

	s.metrics.TreeTransitions.WithLabelValues(verifyChange.Label()).Inc()
	s.logger.Info("tree verified", zap.String("tree_id", treeID.Hex()))
	return s.Get(ctx, treeID)
}

// Buy moves a Verified tree to Sold and adds it to the buyer's certificates.
// The owner field is left untouched.
func (s *TreeService) Buy(ctx context.Context, treeID, buyerID primitive.ObjectID) (*models.Tree, error) {
	var bought *models.Tree
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		tree, err := s.findTree(ctx, treeID)
		if err != nil {
			return err
		}
		if tree.Status != models.StatusVerified {
			return ErrNotPurchasable
		}
		if err := s.store.Trees().Transition(ctx, treeID, buyChange); err != nil {
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				return ErrNotPurchasable
			}
			return persistence("mark tree sold", err)
		}
		if err := s.store.Users().AddCertificate(ctx, buyerID, treeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnauthenticated
			}
			return persistence("add certificate", err)
		}
		tree.Status = models.StatusSold
		bought = tree
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TreeTransitions.WithLabelValues(buyChange.Label()).Inc()
	s.logger.Info("tree bought", zap.String("tree_id", treeID.Hex()), zap.String("buyer_id", buyerID.Hex()))
	s.notifyBuyer(ctx, buyerID, bought)
	return bought, nil
}

// Resell returns a Sold tree to the marketplace. The caller must hold its
// certificate.
func (s *TreeService) Resell(ctx context.Context, treeID, userID primitive.ObjectID) (*models.Tree, error) {
	var resold *models.Tree
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		tree, err := s.findTree(ctx, treeID)
		if err != nil {
			return err
		}
		if tree.Status != models.StatusSold {
			return ErrNotResellable
		}
		user, err := s.store.Users().FindByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnauthenticated
		}
		if err != nil {
			return persistence("find seller", err)
		}
		if !user.HoldsCertificate(treeID) {
			return ErrNotResellable
		}
		if err := s.store.Users().RemoveCertificate(ctx, userID, treeID); err != nil {
			return persistence("remove certificate", err)
		}
		if err := s.store.Trees().Transition(ctx, treeID, resellChange); err != nil {
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				return ErrNotResellable
			}
			return persistence("relist tree", err)
		}
		tree.Status = models.StatusVerified
		tree.Owner = nil
		resold = tree
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TreeTransitions.WithLabelValues(resellChange.Label()).Inc()
	s.logger.Info("tree resold", zap.String("tree_id", treeID.Hex()), zap.String("seller_id", userID.Hex()))
	return resold, nil
}

// Get loads one tree.
func (s *TreeService) Get(ctx context.Context, id primitive.ObjectID) (*models.Tree, error) {
	return s.findTree(ctx, id)
}

// List returns every tree in creation order.
func (s *TreeService) List(ctx context.Context) ([]models.Tree, error) {
	trees, err := s.store.Trees().List(ctx)
	return trees, persistence("list trees", err)
}

// Profile loads a user with their planted and certificate trees.
func (s *TreeService) Profile(ctx context.Context, userID primitive.ObjectID) (*Profile, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, persistence("find user", err)
	}
	planted, err := s.store.Trees().FindMany(ctx, user.Trees)
	if err != nil {
		return nil, persistence("find planted trees", err)
	}
	certificates, err := s.store.Trees().FindMany(ctx, user.Certificates)
	if err != nil {
		return nil, persistence("find certificate trees", err)
	}
	return &Profile{User: user, Planted: planted, Certificates: certificates}, nil
}

// Stats counts trees, users and trees per status.
func (s *TreeService) Stats(ctx context.Context) (*Stats, error) {
	totalTrees, err := s.store.Trees().Count(ctx)
	if err != nil {
		return nil, persistence("count trees", err)
	}
	totalUsers, err := s.store.Users().Count(ctx)
	if err != nil {
		return nil, persistence("count users", err)
	}
	stats := &Stats{TotalTrees: totalTrees, TotalUsers: totalUsers}
	for _, status := range models.Statuses {
		n, err := s.store.Trees().CountByStatus(ctx, status)
		if err != nil {
			return nil, persistence("count trees by status", err)
		}
		stats.ByStatus = append(stats.ByStatus, StatusCount{Status: status, Count: n})
	}
	return stats, nil
}

func (s *TreeService) findTree(ctx context.Context, id primitive.ObjectID) (*models.Tree, error) {
	tree, err := s.store.Trees().FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("find tree", err)
	}
	return tree, nil
}

func (s *TreeService) notifyBuyer(ctx context.Context, buyerID primitive.ObjectID, tree *models.Tree) {
	buyer, err := s.store.Users().FindByID(ctx, buyerID)
	if err != nil {
		s.logger.Warn("purchase email skipped", zap.String("buyer_id", buyerID.Hex()), zap.Error(err))
		return
	}
	if err := utils.SendPurchaseEmail(s.mailer, buyer.Email, buyer.Name, tree, s.baseURL); err != nil {
		s.logger.Warn("purchase email failed", zap.String("buyer_id", buyerID.Hex()), zap.Error(err))
	}
}
