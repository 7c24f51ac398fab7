package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disgoorg/progression-bot/internal/testutil"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
)

type recordingPutter struct {
	key  string
	body []byte
}

func (p *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.key = aws.ToString(in.Key)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	p.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestLedgerArchive_Archive(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ledger := repositories.NewLedgerRepository(db)

	march := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{march, march.AddDate(0, 0, 1), march.AddDate(0, 1, 0)} {
		require.NoError(t, ledger.Insert(ctx, &models.LedgerEntry{
			PlayerID:    "u1-g1",
			GuildID:     "g1",
			Amount:      int64(10 * (i + 1)),
			Currency:    models.CurrencyExp,
			Category:    models.CategoryChat,
			Reason:      "Chat message, with comma",
			ActorID:     models.ActorSystem,
			EffectiveAt: at,
			CreatedAt:   at,
		}))
	}

	putter := &recordingPutter{}
	archive := NewLedgerArchive(putter, ledger, "bucket", "/ledger/")

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	key, count, err := archive.Archive(ctx, "", from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "ledger/all/2024-03.csv", key)
	assert.Equal(t, 2, count)
	assert.Equal(t, key, putter.key)

	rows, err := csv.NewReader(bytes.NewReader(putter.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "10", rows[1][3])
	assert.Equal(t, "Chat message, with comma", rows[1][6])
	assert.Equal(t, "2024-03-06T12:00:00Z", rows[2][10])
}

func TestLedgerArchive_ObjectKey(t *testing.T) {
	archive := NewLedgerArchive(nil, nil, "bucket", "exports")
	assert.Equal(t, "exports/g1/2024-11.csv", archive.ObjectKey("g1", time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)))
}
