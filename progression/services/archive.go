package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/disgoorg/progression-bot/progression/database/models"
)

// ObjectPutter is the part of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// LedgerLister reads ledger entries of one guild, or of all guilds when
// guildID is empty.
type LedgerLister interface {
	ListBetween(ctx context.Context, guildID string, from, to time.Time) ([]*models.LedgerEntry, error)
}

type ArchiveOptions struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
	Prefix   string
}

// LedgerArchive exports ledger ranges as CSV and stores them in an S3
// compatible bucket.
type LedgerArchive struct {
	client ObjectPutter
	ledger LedgerLister
	bucket string
	prefix string
}

func NewS3Client(ctx context.Context, opts ArchiveOptions) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.Key, opts.Secret, "")),
		config.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load archive storage config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewLedgerArchive(client ObjectPutter, ledger LedgerLister, bucket, prefix string) *LedgerArchive {
	return &LedgerArchive{
		client: client,
		ledger: ledger,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

var csvHeader = []string{"id", "player_id", "guild_id", "amount", "currency", "category", "reason", "actor_id", "audit", "effective_at", "created_at"}

// Export renders the entries of [from, to) as CSV.
func (a *LedgerArchive) Export(ctx context.Context, guildID string, from, to time.Time) ([]byte, int, error) {
	entries, err := a.ledger.ListBetween(ctx, guildID, from, to)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, 0, err
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.PlayerID,
			e.GuildID,
			strconv.FormatInt(e.Amount, 10),
			string(e.Currency),
			string(e.Category),
			e.Reason,
			e.ActorID,
			strconv.FormatBool(e.Audit),
			e.EffectiveAt.UTC().Format(time.RFC3339),
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("failed to write ledger csv: %w", err)
	}
	return buf.Bytes(), len(entries), nil
}

// ObjectKey names the archive object of a month, e.g. ledger/all/2024-03.csv.
func (a *LedgerArchive) ObjectKey(guildID string, from time.Time) string {
	scope := guildID
	if scope == "" {
		scope = "all"
	}
	return path.Join(a.prefix, scope, from.Format("2006-01")+".csv")
}

// Archive uploads the CSV of [from, to) and returns the object key.
func (a *LedgerArchive) Archive(ctx context.Context, guildID string, from, to time.Time) (string, int, error) {
	body, count, err := a.Export(ctx, guildID, from, to)
	if err != nil {
		return "", 0, err
	}

	key := a.ObjectKey(guildID, from)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload ledger archive %s: %w", key, err)
	}

	slog.Info("Ledger archived",
		slog.String("type", "sys"),
		slog.String("key", key),
		slog.Int("entries", count))
	return key, count, nil
}
