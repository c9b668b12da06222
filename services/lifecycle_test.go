package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"greenexchange/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLifecycle_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")

	tree := f.plant(t, planter.ID)
	assert.Equal(t, models.StatusPending, tree.Status)
	assert.Equal(t, planter.ID, tree.PlantedBy)

	_, err := f.trees.Verify(ctx, tree.ID)
	require.NoError(t, err)

	bought, err := f.trees.Buy(ctx, tree.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, bought.Status)
	assert.Equal(t, models.StatusSold, f.tree(t, tree.ID).Status)
	assert.Equal(t, []primitive.ObjectID{tree.ID}, f.user(t, buyer.ID).Certificates)

	resold, err := f.trees.Resell(ctx, tree.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, resold.Status)

	stored := f.tree(t, tree.ID)
	assert.Equal(t, models.StatusVerified, stored.Status)
	assert.Nil(t, stored.Owner)
	assert.Empty(t, f.user(t, buyer.ID).Certificates)
	assert.Equal(t, planter.ID, stored.PlantedBy)
}

func TestPlant_AppendsTreeExactlyOnceInOrder(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")

	first := f.plant(t, planter.ID)
	second := f.plant(t, planter.ID)

	assert.Equal(t, []primitive.ObjectID{first.ID, second.ID}, f.user(t, planter.ID).Trees)
	assert.Equal(t, "/uploads/1-oak.png", f.tree(t, first.ID).Image)
}

func TestPlant_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")

	_, err := f.trees.Plant(context.Background(), planter.ID, PlantInput{State: "Goa", Price: -1}, "")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "Adhar is required")
	assert.Contains(t, err.Error(), "Price must be at least 0")
}

func TestPlant_UnknownPlanter(t *testing.T) {
	f := newFixture(t)

	_, err := f.trees.Plant(context.Background(), primitive.NewObjectID(), PlantInput{
		Adhar: 1, State: "Goa", Distric: "North Goa", PinCode: "403001", Price: 10,
	}, "")

	assert.ErrorIs(t, err, ErrUnauthenticated)
	count, err := f.store.Trees().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPlant_RollsBackWhenUserWriteFails(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")
	trees := f.withFailure(t, "AppendTree")

	_, err := trees.Plant(context.Background(), planter.ID, PlantInput{
		Adhar: 1, State: "Goa", Distric: "North Goa", PinCode: "403001", Price: 10,
	}, "")

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, errBoom)
	count, err := f.store.Trees().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.user(t, planter.ID).Trees)
}

func TestBuy_RequiresVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")

	pending := f.plant(t, planter.ID)
	_, err := f.trees.Buy(ctx, pending.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrNotPurchasable)

	sold := f.plantVerified(t, planter.ID)
	_, err = f.trees.Buy(ctx, sold.ID, buyer.ID)
	require.NoError(t, err)
	_, err = f.trees.Buy(ctx, sold.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrNotPurchasable)

	assert.Equal(t, []primitive.ObjectID{sold.ID}, f.user(t, buyer.ID).Certificates)
	assert.Equal(t, models.StatusPending, f.tree(t, pending.ID).Status)

	_, err = f.trees.Buy(ctx, primitive.NewObjectID(), buyer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuy_RollsBackWhenCertificateWriteFails(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")
	tree := f.plantVerified(t, planter.ID)
	trees := f.withFailure(t, "AddCertificate")

	_, err := trees.Buy(context.Background(), tree.ID, buyer.ID)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, models.StatusVerified, f.tree(t, tree.ID).Status)
	assert.Empty(t, f.user(t, buyer.ID).Certificates)
}

func TestBuy_UnknownBuyerRollsBack(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")
	tree := f.plantVerified(t, planter.ID)

	_, err := f.trees.Buy(context.Background(), tree.ID, primitive.NewObjectID())

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, models.StatusVerified, f.tree(t, tree.ID).Status)
}

func TestBuy_ConcurrentBuyersOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")
	tree := f.plantVerified(t, planter.ID)

	const buyers = 8
	ids := make([]primitive.ObjectID, buyers)
	for i := range ids {
		ids[i] = f.signup(t, "Buyer", primitive.NewObjectID().Hex()+"@example.com").ID
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.trees.Buy(context.Background(), tree.ID, ids[i])
		}(i)
	}
	wg.Wait()

	wins := 0
	holders := 0
	for i, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrNotPurchasable)
		}
		if f.user(t, ids[i]).HoldsCertificate(tree.ID) {
			holders++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, holders)
}

func TestBuy_SendsPurchaseEmail(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")
	tree := f.plantVerified(t, planter.ID)

	_, err := f.trees.Buy(context.Background(), tree.ID, buyer.ID)
	require.NoError(t, err)

	last := f.mailer.sent[len(f.mailer.sent)-1]
	assert.Equal(t, "buyer@example.com", last.to)
	assert.Contains(t, last.body, tree.ID.Hex())
}

func TestResell_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")
	stranger := f.signup(t, "Stranger", "stranger@example.com")

	pending := f.plant(t, planter.ID)
	_, err := f.trees.Resell(ctx, pending.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrNotResellable)
	assert.Equal(t, models.StatusPending, f.tree(t, pending.ID).Status)

	verified := f.plantVerified(t, planter.ID)
	_, err = f.trees.Resell(ctx, verified.ID, buyer.ID)
	assert.ErrorIs(t, err, ErrNotResellable)

	_, err = f.trees.Buy(ctx, verified.ID, buyer.ID)
	require.NoError(t, err)
	_, err = f.trees.Resell(ctx, verified.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotResellable)
	assert.Equal(t, models.StatusSold, f.tree(t, verified.ID).Status)
	assert.True(t, f.user(t, buyer.ID).HoldsCertificate(verified.ID))

	_, err = f.trees.Resell(ctx, primitive.NewObjectID(), buyer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResell_ClearsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")
	owner := buyer.ID
	tree := &models.Tree{Adhar: 1, State: "Goa", Status: models.StatusSold, Owner: &owner, PlantedBy: planter.ID}
	require.NoError(t, f.store.Trees().Create(ctx, tree))
	require.NoError(t, f.store.Users().AddCertificate(ctx, buyer.ID, tree.ID))

	_, err := f.trees.Resell(ctx, tree.ID, buyer.ID)
	require.NoError(t, err)

	assert.Nil(t, f.tree(t, tree.ID).Owner)
}

func TestResell_FailedCertificateRemovalKeepsSale(t *testing.T) {
	f := newFixture(t)
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")
	tree := f.plantVerified(t, planter.ID)
	_, err := f.trees.Buy(context.Background(), tree.ID, buyer.ID)
	require.NoError(t, err)
	trees := f.withFailure(t, "RemoveCertificate")

	_, err = trees.Resell(context.Background(), tree.ID, buyer.ID)

	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, models.StatusSold, f.tree(t, tree.ID).Status)
	assert.True(t, f.user(t, buyer.ID).HoldsCertificate(tree.ID))
}

func TestVerify_OnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	planter := f.signup(t, "Planter", "planter@example.com")
	tree := f.plantVerified(t, planter.ID)

	_, err := f.trees.Verify(ctx, tree.ID)
	assert.ErrorIs(t, err, ErrNotVerifiable)

	_, err = f.trees.Verify(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	planter := f.signup(t, "Planter", "planter@example.com")
	buyer := f.signup(t, "Buyer", "buyer@example.com")
	f.plant(t, planter.ID)
	sold := f.plantVerified(t, planter.ID)
	f.plantVerified(t, planter.ID)
	_, err := f.trees.Buy(ctx, sold.ID, buyer.ID)
	require.NoError(t, err)

	profile, err := f.trees.Profile(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.Planted)
	require.Len(t, profile.Certificates, 1)
	assert.Equal(t, sold.ID, profile.Certificates[0].ID)

	profile, err = f.trees.Profile(ctx, planter.ID)
	require.NoError(t, err)
	assert.Len(t, profile.Planted, 3)

	stats, err := f.trees.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalTrees)
	assert.EqualValues(t, 2, stats.TotalUsers)
	assert.Equal(t, []StatusCount{
		{Status: models.StatusPending, Count: 1},
		{Status: models.StatusVerified, Count: 1},
		{Status: models.StatusSold, Count: 1},
	}, stats.ByStatus)

	_, err = f.trees.Profile(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPersistenceWrapping(t *testing.T) {
	assert.NoError(t, persistence("op", nil))
	assert.Equal(t, ErrNotFound, persistence("op", ErrNotFound))

	err := persistence("op", errBoom)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "op", pe.Op)
	assert.Equal(t, "persistence: op: boom", err.Error())
	assert.Same(t, pe, persistence("outer", err).(*PersistenceError))
}
