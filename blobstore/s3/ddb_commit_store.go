package s3

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/rowtable/blobstore"
)

// DDBCommitStore publishes table files as immutable versions in an inner
// BlobStore and records each committed version in DynamoDB.
//
// Writers pick version latest+1, upload the object under a versioned key and
// then commit the version with a conditional PutItem. A second publisher that
// raced for the same version gets ErrConcurrentModification and its object is
// removed. Readers open the latest committed version.
//
// Table schema:
//   - Partition key: table_uri (string) - baseURI + "/" + blob name
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name rowtable-commits \
//	  --attribute-definitions AttributeName=table_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=table_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	inner     blobstore.BlobStore
	ddbClient DDBClient
	tableName string
	baseURI   string
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentModification is returned when another publisher committed the
// same version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

const (
	attrTableURI  = "table_uri"
	attrVersion   = "version"
	attrObjectKey = "object_key"
	versionSep    = ".v"
)

// NewDDBCommitStore creates a commit store over inner.
// baseURI (e.g. "s3://bucket/prefix") namespaces the partition keys.
func NewDDBCommitStore(inner blobstore.BlobStore, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		inner:     inner,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   strings.TrimSuffix(baseURI, "/"),
	}
}

func (s *DDBCommitStore) tableURI(name string) string {
	return s.baseURI + "/" + name
}

// versionedName returns the inner blob name of one upload of a version.
// The random suffix keeps racing publishers of the same version apart.
func versionedName(name string, version uint64) string {
	var token [8]byte
	_, _ = rand.Read(token[:])
	return fmt.Sprintf("%s%s%020d.%s", name, versionSep, version, hex.EncodeToString(token[:]))
}

// parseVersionedName reverses versionedName.
func parseVersionedName(key string) (string, uint64, bool) {
	i := strings.LastIndex(key, versionSep)
	if i <= 0 {
		return "", 0, false
	}
	digits, token, ok := strings.Cut(key[i+len(versionSep):], ".")
	if !ok || len(digits) != 20 || token == "" {
		return "", 0, false
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return key[:i], v, true
}

// Open opens the latest committed version of name.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	version, objectKey, err := s.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, fmt.Errorf("ddb commit store: %s: %w", name, blobstore.ErrNotFound)
	}
	return s.inner.Open(ctx, objectKey)
}

// OpenVersion opens a specific committed version of name.
func (s *DDBCommitStore) OpenVersion(ctx context.Context, name string, version uint64) (blobstore.Blob, error) {
	resp, err := s.ddbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrTableURI: &types.AttributeValueMemberS{Value: s.tableURI(name)},
			attrVersion:  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get version from DynamoDB: %w", err)
	}
	if len(resp.Item) == 0 {
		return nil, fmt.Errorf("ddb commit store: %s version %d: %w", name, version, blobstore.ErrNotFound)
	}
	_, objectKey, err := parseItem(resp.Item)
	if err != nil {
		return nil, err
	}
	return s.inner.Open(ctx, objectKey)
}

// LatestVersion returns the latest committed version of name, or 0.
func (s *DDBCommitStore) LatestVersion(ctx context.Context, name string) (uint64, error) {
	version, _, err := s.latest(ctx, name)
	return version, err
}

// Put publishes data as the next version of name.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	version, err := s.LatestVersion(ctx, name)
	if err != nil {
		return err
	}
	next := version + 1
	objectKey := versionedName(name, next)

	if err := s.inner.Put(ctx, objectKey, data); err != nil {
		return err
	}
	return s.commit(ctx, name, next, objectKey)
}

// Create streams the next version of name; it is committed on Close.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	version, err := s.LatestVersion(ctx, name)
	if err != nil {
		return nil, err
	}
	next := version + 1
	objectKey := versionedName(name, next)

	w, err := s.inner.Create(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	return &committingBlob{
		WritableBlob: w,
		ctx:          ctx,
		store:        s,
		name:         name,
		version:      next,
		objectKey:    objectKey,
	}, nil
}

// Delete removes every committed version of name and its objects.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	items, err := s.query(ctx, name, 0)
	if err != nil {
		return err
	}
	for _, item := range items {
		version, objectKey, err := parseItem(item)
		if err != nil {
			return err
		}
		if err := s.inner.Delete(ctx, objectKey); err != nil {
			return err
		}
		if _, err := s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				attrTableURI: &types.AttributeValueMemberS{Value: s.tableURI(name)},
				attrVersion:  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			},
		}); err != nil {
			return fmt.Errorf("failed to delete version from DynamoDB: %w", err)
		}
	}
	return nil
}

// List returns the logical names of published tables with the given prefix.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(keys))
	var names []string
	for _, k := range keys {
		name, _, ok := parseVersionedName(k)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *DDBCommitStore) query(ctx context.Context, name string, limit int32) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String(attrTableURI + " = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.tableURI(name)},
		},
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	var items []map[string]types.AttributeValue
	for {
		resp, err := s.ddbClient.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
		}
		items = append(items, resp.Items...)
		if limit > 0 || len(resp.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = resp.LastEvaluatedKey
	}
}

// latest queries DynamoDB for the latest committed version.
func (s *DDBCommitStore) latest(ctx context.Context, name string) (uint64, string, error) {
	items, err := s.query(ctx, name, 1)
	if err != nil {
		return 0, "", err
	}
	if len(items) == 0 {
		return 0, "", nil
	}
	return parseItem(items[0])
}

func parseItem(item map[string]types.AttributeValue) (uint64, string, error) {
	versionAttr, ok := item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in DynamoDB")
	}
	keyAttr, ok := item[attrObjectKey].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid object_key attribute in DynamoDB")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}
	return version, keyAttr.Value, nil
}

// commit records version with a conditional write. On conflict the orphaned
// object is deleted.
func (s *DDBCommitStore) commit(ctx context.Context, name string, version uint64, objectKey string) error {
	_, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			attrTableURI:  &types.AttributeValueMemberS{Value: s.tableURI(name)},
			attrVersion:   &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			attrObjectKey: &types.AttributeValueMemberS{Value: objectKey},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		_ = s.inner.Delete(ctx, objectKey)
		return fmt.Errorf("%s version %d: %w", name, version, ErrConcurrentModification)
	}
	return fmt.Errorf("failed to commit version to DynamoDB: %w", err)
}

// committingBlob commits its version after the inner upload completes.
type committingBlob struct {
	blobstore.WritableBlob
	ctx       context.Context
	store     *DDBCommitStore
	name      string
	version   uint64
	objectKey string

	once sync.Once
	err  error
}

func (b *committingBlob) Close() error {
	b.once.Do(func() {
		if err := b.WritableBlob.Close(); err != nil {
			b.err = err
			return
		}
		b.err = b.store.commit(b.ctx, b.name, b.version, b.objectKey)
	})
	return b.err
}

// Abort discards the upload without committing.
func (b *committingBlob) Abort() error {
	var err error
	b.once.Do(func() {
		b.err = errUploadAborted
		if a, ok := b.WritableBlob.(blobstore.Aborter); ok {
			err = a.Abort()
		}
	})
	return err
}
