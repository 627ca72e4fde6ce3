package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/repo"
	"github.com/xxxsen/ragchat/internal/service"
	"github.com/xxxsen/ragchat/test/testutil"
)

func TestSourceRegistryUpsertReturnsWinner(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	registry := service.NewSourceRegistry(repo.NewSourceRepo(db))
	url := "https://example.com/" + uuid.NewString()

	first, err := registry.Upsert(context.Background(), service.SourceInput{URL: url, Title: "original"})
	require.NoError(t, err)

	second, err := registry.Upsert(context.Background(), service.SourceInput{URL: url, Title: "replacement attempt"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "original", second.Title, "first persisted title survives")
}

func TestChunkRegistryUpsertByIdentity(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	sources := service.NewSourceRegistry(repo.NewSourceRepo(db))
	chunks := service.NewChunkRegistry(repo.NewChunkRepo(db))

	src, err := sources.Upsert(context.Background(), service.SourceInput{URL: "https://example.com/" + uuid.NewString()})
	require.NoError(t, err)

	content := "identical content " + uuid.NewString()
	first, err := chunks.Upsert(context.Background(), src, service.ChunkInput{Content: content})
	require.NoError(t, err)
	require.Equal(t, model.ChunkTypeFixed, first.ChunkType, "missing type defaults to fixed")
	require.Equal(t, len(content), first.ChunkSize, "missing size defaults to content length")

	dup, err := chunks.Upsert(context.Background(), src, service.ChunkInput{Content: content, ChunkType: model.ChunkTypeFixed})
	require.NoError(t, err)
	require.Equal(t, first.ID, dup.ID)

	other, err := chunks.Upsert(context.Background(), src, service.ChunkInput{Content: content, ChunkType: model.ChunkTypeSemantic})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID, "chunk type is part of the identity")
}

func TestAssociatorFirstScoreWins(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chats := repo.NewChatRepo(db)
	turns := repo.NewTurnRepo(db)
	sources := service.NewSourceRegistry(repo.NewSourceRepo(db))
	assoc := service.NewAssociator(repo.NewTurnSourceRepo(db), repo.NewTurnChunkRepo(db))
	now := timeutil.NowUnix()

	chat := &model.Chat{ID: uuid.NewString(), OwnerKind: model.OwnerKindAnonymous, OwnerID: uuid.NewString(), Ctime: now, Mtime: now}
	require.NoError(t, chats.Create(context.Background(), chat))
	turn := &model.Turn{ID: uuid.NewString(), ChatID: chat.ID, Role: model.RoleAssistant, Content: "answer", Ctime: now}
	require.NoError(t, turns.Create(context.Background(), turn))

	src, err := sources.Upsert(context.Background(), service.SourceInput{URL: "https://example.com/" + uuid.NewString()})
	require.NoError(t, err)

	first, err := assoc.AssociateSource(context.Background(), turn.ID, src.ID, 1.0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, first.RelevanceScore, 1e-9)

	repeat, err := assoc.AssociateSource(context.Background(), turn.ID, src.ID, 0.2)
	require.NoError(t, err)
	require.Equal(t, first.ID, repeat.ID)
	require.InDelta(t, 1.0, repeat.RelevanceScore, 1e-9, "duplicate call returns the original score")

	otherTurn := &model.Turn{ID: uuid.NewString(), ChatID: chat.ID, Role: model.RoleAssistant, Content: "second answer", Ctime: now}
	require.NoError(t, turns.Create(context.Background(), otherTurn))
	boundary, err := assoc.AssociateSource(context.Background(), otherTurn.ID, src.ID, 0.0)
	require.NoError(t, err, "zero is a legal relevance score")
	require.InDelta(t, 0.0, boundary.RelevanceScore, 1e-9)
}
