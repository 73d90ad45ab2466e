package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design. Each collection is one
// partition; the sort key is the record id (phone for sellers).
const (
	pkProduct = "PRODUCT"
	pkSeller  = "SELLER"
	pkReel    = "REEL"

	// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
	maxBatchWrite = 25

	// maxConditionalRetries bounds optimistic read-modify-write loops.
	maxConditionalRetries = 5
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoStore implements RecordStore on a DynamoDB table with a string
// partition key PK and string sort key SK.
//
// Recency is tracked by a numeric seq attribute. Field edits and seller
// merges are conditional puts on a version attribute, retried when another
// writer got there first, so concurrent updates are never lost.
type DynamoStore struct {
	client    DynamoDBAPI
	tableName string

	seqMu   sync.Mutex
	lastSeq int64

	// writeMu serializes this process's read-modify-write cycles; the
	// version condition covers writers in other processes.
	writeMu sync.Mutex
}

// Compile-time interface check.
var _ RecordStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoStore) Close() error { return nil }

// versioned wraps a decoded record with its bookkeeping attributes.
type versioned[T any] struct {
	rec     T
	seq     int64
	version int64
}

// nextSeq returns a strictly increasing sequence number seeded from the clock.
func (s *DynamoStore) nextSeq() int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	n := time.Now().UnixNano()
	if n <= s.lastSeq {
		n = s.lastSeq + 1
	}
	s.lastSeq = n
	return n
}

// --- Internal helpers ---

// putItem marshals a domain object and writes it with PK, SK, seq and
// version. When expectVersion is non-nil the write is conditional on the
// stored version matching (0 meaning "no item yet").
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}, seq, version int64, expectVersion *int64) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["seq"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(seq, 10)}
	item["version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)}

	input := &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if expectVersion != nil {
		if *expectVersion == 0 {
			input.ConditionExpression = aws.String("attribute_not_exists(PK)")
		} else {
			input.ConditionExpression = aws.String("version = :v")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(*expectVersion, 10)},
			}
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item and decodes it. Returns nil when absent.
func getItem[T any](ctx context.Context, s *DynamoStore, pk, sk string) (*versioned[T], error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	return decodeItem[T](result.Item)
}

func decodeItem[T any](item map[string]types.AttributeValue) (*versioned[T], error) {
	var out versioned[T]
	if err := attributevalue.UnmarshalMap(item, &out.rec); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if v, ok := item["seq"].(*types.AttributeValueMemberN); ok {
		out.seq, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := item["version"].(*types.AttributeValueMemberN); ok {
		out.version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	return &out, nil
}

func skOf(item map[string]types.AttributeValue) string {
	if v, ok := item["SK"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// queryPartition returns every item in a collection partition.
func (s *DynamoStore) queryPartition(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	}

	var allItems []map[string]types.AttributeValue

	// DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s: %w", pk, err)
		}
		allItems = append(allItems, result.Items...)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return allItems, nil
}

// batchDeleteKeys deletes multiple items in one partition by sort key.
// Handles DynamoDB's 25-item-per-batch limit automatically.
func (s *DynamoStore) batchDeleteKeys(ctx context.Context, pk string, sks []string) error {
	for i := 0; i < len(sks); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(sks) {
			end = len(sks)
		}

		var requests []types.WriteRequest
		for _, sk := range sks[i:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: pk},
					"SK": &types.AttributeValueMemberS{Value: sk},
				}},
			})
		}

		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: requests,
			},
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem delete (%d items): %w", len(requests), err)
		}
		// UnprocessedItems are not retried; the next trim picks them up.
	}
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// listProducts returns the partition sorted by seq, oldest first.
func (s *DynamoStore) listProducts(ctx context.Context) ([]*versioned[Product], error) {
	items, err := s.queryPartition(ctx, pkProduct)
	if err != nil {
		return nil, err
	}
	out := make([]*versioned[Product], 0, len(items))
	for _, item := range items {
		v, err := decodeItem[Product](item)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", skOf(item), err)
		}
		v.rec.ID = skOf(item)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out, nil
}

// --- Products ---

func (s *DynamoStore) UpsertProduct(ctx context.Context, p *Product) error {
	seq := s.nextSeq()
	if err := s.putItem(ctx, pkProduct, p.ID, p, seq, seq, nil); err != nil {
		return err
	}

	all, err := s.listProducts(ctx)
	if err != nil {
		return fmt.Errorf("trim products: %w", err)
	}
	if len(all) <= MaxProducts {
		return nil
	}
	var stale []string
	for _, v := range all[:len(all)-MaxProducts] {
		stale = append(stale, v.rec.ID)
	}
	log.Debug().Int("count", len(stale)).Msg("Trimming products outside recency window")
	return s.batchDeleteKeys(ctx, pkProduct, stale)
}

func (s *DynamoStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	v, err := getItem[Product](ctx, s, pkProduct, id)
	if err != nil || v == nil {
		return nil, err
	}
	v.rec.ID = id
	return &v.rec, nil
}

func (s *DynamoStore) FindProduct(ctx context.Context, idOrPrefix string) (*Product, error) {
	list, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return findProduct(list, idOrPrefix)
}

func (s *DynamoStore) ListProducts(ctx context.Context) ([]*Product, error) {
	all, err := s.listProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Product, 0, len(all))
	for _, v := range all {
		p := v.rec
		out = append(out, &p)
	}
	return out, nil
}

func (s *DynamoStore) UpdateProduct(ctx context.Context, id string, fn func(*Product) error) (*Product, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for attempt := 0; attempt < maxConditionalRetries; attempt++ {
		v, err := getItem[Product](ctx, s, pkProduct, id)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, ErrNotFound
		}
		p := v.rec
		if err := fn(&p); err != nil {
			return nil, err
		}
		p.ID = id
		p.UpdatedAt = Now()

		expect := v.version
		err = s.putItem(ctx, pkProduct, id, &p, v.seq, v.version+1, &expect)
		if err == nil {
			return &p, nil
		}
		if !isConditionFailed(err) {
			return nil, err
		}
		log.Debug().Str("productId", id).Int("attempt", attempt+1).Msg("Concurrent product update, retrying")
	}
	return nil, fmt.Errorf("update product %s: too many concurrent writers", id)
}

// --- Sellers ---

func (s *DynamoStore) UpsertSeller(ctx context.Context, update *SellerProfile) (*SellerProfile, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for attempt := 0; attempt < maxConditionalRetries; attempt++ {
		v, err := getItem[SellerProfile](ctx, s, pkSeller, update.Phone)
		if err != nil {
			return nil, err
		}
		var existing *SellerProfile
		var version int64
		if v != nil {
			v.rec.Phone = update.Phone
			existing, version = &v.rec, v.version
		}
		merged := existing.Merge(update)

		err = s.putItem(ctx, pkSeller, update.Phone, merged, 0, version+1, &version)
		if err == nil {
			return merged, nil
		}
		if !isConditionFailed(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("upsert seller %s: too many concurrent writers", update.Phone)
}

func (s *DynamoStore) GetSeller(ctx context.Context, phone string) (*SellerProfile, error) {
	v, err := getItem[SellerProfile](ctx, s, pkSeller, phone)
	if err != nil || v == nil {
		return nil, err
	}
	v.rec.Phone = phone
	return &v.rec, nil
}

func (s *DynamoStore) ListSellers(ctx context.Context) ([]*SellerProfile, error) {
	items, err := s.queryPartition(ctx, pkSeller)
	if err != nil {
		return nil, err
	}
	out := make([]*SellerProfile, 0, len(items))
	for _, item := range items {
		v, err := decodeItem[SellerProfile](item)
		if err != nil {
			return nil, fmt.Errorf("seller %s: %w", skOf(item), err)
		}
		v.rec.Phone = skOf(item)
		sp := v.rec
		out = append(out, &sp)
	}
	return out, nil
}

// --- Reels ---

func (s *DynamoStore) AddReel(ctx context.Context, r *Reel) error {
	seq := s.nextSeq()
	return s.putItem(ctx, pkReel, r.ID, r, seq, seq, nil)
}

func (s *DynamoStore) ListReels(ctx context.Context) ([]*Reel, error) {
	items, err := s.queryPartition(ctx, pkReel)
	if err != nil {
		return nil, err
	}
	all := make([]*versioned[Reel], 0, len(items))
	for _, item := range items {
		v, err := decodeItem[Reel](item)
		if err != nil {
			return nil, fmt.Errorf("reel %s: %w", skOf(item), err)
		}
		v.rec.ID = skOf(item)
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]*Reel, 0, len(all))
	for _, v := range all {
		r := v.rec
		out = append(out, &r)
	}
	return out, nil
}
