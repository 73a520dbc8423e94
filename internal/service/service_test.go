package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/auth"
	s3blob "github.com/whalebounty/whalebounty/internal/blob/s3"
	"github.com/whalebounty/whalebounty/internal/crypto"
	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/random"
	"github.com/whalebounty/whalebounty/internal/store/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []domain.GameUpdate
}

func (p *recordingPublisher) Publish(_ context.Context, u domain.GameUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

type heldLocks struct{}

func (heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

type gameFixture struct {
	svc      *GameService
	results  *memory.ResultStore
	audit    *memory.AuditStore
	prefs    *memory.PreferenceStore
	updates  *recordingPublisher
	archiver *s3blob.TranscriptArchiver
}

func newGameFixture(t *testing.T, cfg GameServiceConfig) gameFixture {
	t.Helper()
	blobs := memory.NewBlobStore()
	f := gameFixture{
		results:  memory.NewResultStore(),
		audit:    memory.NewAuditStore(),
		prefs:    memory.NewPreferenceStore(),
		updates:  &recordingPublisher{},
		archiver: s3blob.NewTranscriptArchiver(blobs, blobs, "test/", quietLogger()),
	}
	var seed uint64
	f.svc = NewGameService(GameDeps{
		Catalog: game.DefaultCatalog(),
		NewRand: func() (random.Source, error) {
			seed++
			return random.New(seed), nil
		},
		Results:  f.results,
		Prefs:    f.prefs,
		Audit:    f.audit,
		Archiver: f.archiver,
		Updates:  f.updates,
	}, cfg, quietLogger())
	return f
}

const owner = "0x00000000000000000000000000000000000000aa"

func playToEnd(t *testing.T, svc *GameService, id string) GameView {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 2*game.InitialHP; i++ {
		v, err := svc.Get(ctx, id, owner)
		require.NoError(t, err)
		v, err = svc.Play(ctx, id, owner, v.State.PlayerHand[0].ID)
		require.NoError(t, err)
		if v.State.IsGameOver {
			return v
		}
	}
	t.Fatal("game did not finish")
	return GameView{}
}

func TestNewGameDealsAndPublishes(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{AppURL: "https://app.example"})
	v, err := f.svc.NewGame(context.Background(), owner)
	require.NoError(t, err)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, domain.PhasePlayerTurn, v.State.Phase)
	assert.Len(t, v.State.PlayerHand, game.InitialHandSize)
	require.NotNil(t, v.State.MarketEvent)
	assert.Nil(t, v.Share)
	assert.Equal(t, 2, f.updates.count(), "deal and opening event")
	assert.Equal(t, 1, f.svc.Active())
}

func TestGameOwnership(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{})
	ctx := context.Background()
	v, err := f.svc.NewGame(ctx, owner)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, v.ID, "0xsomeoneelse")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Play(ctx, v.ID, "0xsomeoneelse", v.State.PlayerHand[0].ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Get(ctx, "missing", owner)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlayToGameOverRecordsResult(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{AppURL: "https://app.example"})
	ctx := context.Background()
	v, err := f.svc.NewGame(ctx, owner)
	require.NoError(t, err)

	end := playToEnd(t, f.svc, v.ID)
	require.NotNil(t, end.Share)
	assert.Contains(t, end.Share.URL, "https://twitter.com/intent/tweet?")
	assert.Equal(t, game.ShareText(end.State.Winner), end.Share.Text)

	board, err := f.svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, owner, board[0].Address)
	assert.Equal(t, int64(1), board[0].Wins+board[0].Losses)

	tr, err := f.svc.Transcript(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, end.State.Winner, tr.Winner)
	assert.Equal(t, end.State.History, tr.History)
	assert.Positive(t, tr.Turns)

	entries, err := f.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "game_over", entries[0].Event)

	_, err = f.svc.Play(ctx, v.ID, owner, end.State.PlayerHand[0].ID)
	assert.ErrorIs(t, err, game.ErrGameOver)
}

func TestTranscriptOfUnfinishedGame(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{})
	v, err := f.svc.NewGame(context.Background(), owner)
	require.NoError(t, err)

	_, err = f.svc.Transcript(context.Background(), v.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlayRejectedWhileLockHeld(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{})
	f.svc.deps.Locks = heldLocks{}
	v, err := f.svc.NewGame(context.Background(), owner)
	require.NoError(t, err)

	got, err := f.svc.Play(context.Background(), v.ID, owner, v.State.PlayerHand[0].ID)
	assert.ErrorIs(t, err, game.ErrPlayInFlight)
	assert.Equal(t, v.State, got.State, "state untouched")
}

func TestPlayUnknownCard(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{})
	v, err := f.svc.NewGame(context.Background(), owner)
	require.NoError(t, err)

	_, err = f.svc.Play(context.Background(), v.ID, owner, "not-a-card")
	assert.ErrorIs(t, err, game.ErrCardNotInHand)
}

func TestGameLimitAndSweep(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{MaxGames: 2, GameTTL: time.Minute})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.NewGame(ctx, owner)
		require.NoError(t, err)
	}
	_, err := f.svc.NewGame(ctx, owner)
	assert.ErrorIs(t, err, ErrTooManyGames)

	assert.Zero(t, f.svc.Sweep(now.Add(30*time.Second)))

	// Once the first games go idle, registering sweeps them.
	now = now.Add(2 * time.Minute)
	_, err = f.svc.NewGame(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Active())
}

func TestTutorialSeenFlag(t *testing.T) {
	f := newGameFixture(t, GameServiceConfig{})
	ctx := context.Background()

	v, err := f.svc.Tutorial(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, v.Steps, 4)
	assert.False(t, v.Seen)

	require.NoError(t, f.svc.MarkTutorialSeen(ctx, owner))
	v, err = f.svc.Tutorial(ctx, owner)
	require.NoError(t, err)
	assert.True(t, v.Seen)
}

func TestSimulateIsReproducible(t *testing.T) {
	ctx := context.Background()
	a, err := Simulate(ctx, game.DefaultCatalog(), 50, 4, 7, quietLogger())
	require.NoError(t, err)
	b, err := Simulate(ctx, game.DefaultCatalog(), 50, 1, 7, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, int64(50), a.PlayerWins+a.WhaleWins)
	assert.Equal(t, a.PlayerWins, b.PlayerWins)
	assert.Equal(t, a.TotalRounds, b.TotalRounds)
	assert.InDelta(t, float64(a.PlayerWins)/50, a.PlayerWinRate(), 1e-9)
	assert.GreaterOrEqual(t, a.AvgRounds(), 1.0)
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simulate(ctx, game.DefaultCatalog(), 10, 2, 1, quietLogger())
	assert.True(t, errors.Is(err, context.Canceled))
}

// --- auth service ---

func newAuthFixture(t *testing.T) (*AuthService, *memory.AuditStore, *crypto.Signer) {
	t.Helper()
	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.NewSignerFromKey(pk)

	cfg := auth.DefaultConfig()
	wallet := auth.NewLocalWallet(signer, cfg, false)
	flow := auth.NewFlow(cfg, wallet, memory.NewNonceStore(), auth.NewChainVerifier(nil, nil), quietLogger())
	audit := memory.NewAuditStore()
	return NewAuthService(flow, memory.NewSessionStore(), audit, nil, quietLogger()), audit, signer
}

func TestAuthVerifyBrowserSignature(t *testing.T) {
	svc, audit, signer := newAuthFixture(t)
	ctx := context.Background()
	addr := signer.Address().Hex()

	ch, err := svc.NewChallenge(ctx, "sess-1", addr)
	require.NoError(t, err)
	require.Len(t, ch.Nonce, 32)
	require.Contains(t, ch.Message, "Nonce: "+ch.Nonce)

	sig, err := signer.SignPersonal([]byte(ch.Message))
	require.NoError(t, err)

	res, err := svc.Verify(ctx, "sess-1", ch.Nonce, addr, ch.Message, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, res.Address)

	got, err := svc.Address(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	_, err = svc.Verify(ctx, "sess-1", ch.Nonce, addr, ch.Message, sig)
	assert.Equal(t, auth.CodeNonceReused, auth.CodeOf(err))

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sign_in_failed", entries[0].Event)
	assert.Equal(t, "sign_in", entries[1].Event)
}

func TestAuthSignInThroughProvider(t *testing.T) {
	svc, _, signer := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, signer.Address().Hex(), res.Address)

	require.NoError(t, svc.SignOut(ctx, "sess-2"))
	_, err = svc.Address(ctx, "sess-2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestChallengeWithoutAddress(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ch, err := svc.NewChallenge(context.Background(), "sess-3", "")
	require.NoError(t, err)
	assert.NotEmpty(t, ch.Nonce)
	assert.Empty(t, ch.Message)
}

func TestVerifyRejectsChallengeOfAnotherSession(t *testing.T) {
	svc, audit, signer := newAuthFixture(t)
	ctx := context.Background()
	addr := signer.Address().Hex()

	ch, err := svc.NewChallenge(ctx, "victim", addr)
	require.NoError(t, err)
	sig, err := signer.SignPersonal([]byte(ch.Message))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, "attacker", ch.Nonce, addr, ch.Message, sig)
	assert.Equal(t, auth.CodeInvalidNonce, auth.CodeOf(err))
	_, err = svc.Address(ctx, "attacker")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sign_in_failed", entries[0].Event)
}
