package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"auction-trust/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Each document is a JSON string at doc:{collection}:id and its id is a member of
// docs:{collection}. Indexed fields keep one set per value,
// idx:{collection}:field:value, holding the ids whose field has that value. The
// braces are a cluster hash tag so a document, its collection set and its index
// sets always live in the same slot.
//
// writeScript is the only writer. ARGV: patch JSON, id, mode (replace, merge or
// update), index key prefix, indexed field names. It returns 0 when mode is update
// and the document is missing.
const writeScript = `
        local current = redis.call("GET", KEYS[1])
        local mode = ARGV[3]
        if not current and mode == "update" then
            return 0
        end

        local function indexValue(v)
            local t = type(v)
            if t == "string" then
                return v
            elseif t == "boolean" then
                return tostring(v)
            end
            return nil
        end

        local old = {}
        if current then
            old = cjson.decode(current)
        end
        local previous = {}
        for i = 5, #ARGV do
            previous[ARGV[i]] = indexValue(old[ARGV[i]])
        end

        local doc = cjson.decode(ARGV[1])
        if mode ~= "replace" and current then
            for k, v in pairs(doc) do
                old[k] = v
            end
            doc = old
        end

        redis.call("SET", KEYS[1], cjson.encode(doc))
        redis.call("SADD", KEYS[2], ARGV[2])

        for i = 5, #ARGV do
            local field = ARGV[i]
            local before = previous[field]
            local after = indexValue(doc[field])
            if before ~= after then
                if before then
                    redis.call("SREM", ARGV[4] .. field .. ":" .. before, ARGV[2])
                end
                if after then
                    redis.call("SADD", ARGV[4] .. field .. ":" .. after, ARGV[2])
                end
            end
        end
        return 1
    `

// DefaultIndexes are the fields the trust engine queries on: block edges by either
// endpoint and users by track status.
var DefaultIndexes = map[string][]string{
	domain.CollectionBlocks: {domain.FieldBlockerID, domain.FieldBlockedUserID},
	domain.CollectionUsers:  {domain.FieldVerificationStatus, domain.FieldBiddingApprovalStatus},
}

// DocumentStore is a domain.DocumentStore on a single Redis primary. Every read
// goes to the server, so ReadDefault and ReadStrong behave the same.
type DocumentStore struct {
	client  *redis.Client
	indexes map[string][]string
}

func NewDocumentStore(client *redis.Client) *DocumentStore {
	return NewIndexedDocumentStore(client, DefaultIndexes)
}

// NewIndexedDocumentStore maintains a secondary index for each collection field in
// indexes. Only string and boolean values are indexed.
func NewIndexedDocumentStore(client *redis.Client, indexes map[string][]string) *DocumentStore {
	sorted := make(map[string][]string, len(indexes))
	for collection, fields := range indexes {
		fs := append([]string(nil), fields...)
		sort.Strings(fs)
		sorted[collection] = fs
	}
	return &DocumentStore{client: client, indexes: sorted}
}

func documentKey(collection, id string) string {
	return fmt.Sprintf("doc:{%s}:%s", collection, id)
}

func collectionKey(collection string) string {
	return fmt.Sprintf("docs:{%s}", collection)
}

func indexPrefix(collection string) string {
	return fmt.Sprintf("idx:{%s}:", collection)
}

func indexKey(collection, field, value string) string {
	return indexPrefix(collection) + field + ":" + value
}

func (r *DocumentStore) isIndexed(collection, field string) bool {
	for _, f := range r.indexes[collection] {
		if f == field {
			return true
		}
	}
	return false
}

// indexValue mirrors the script: strings as-is, booleans as "true"/"false".
func indexValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func (r *DocumentStore) Get(ctx context.Context, collection, id string, _ domain.ReadMode) (domain.Document, error) {
	raw, err := r.client.Get(ctx, documentKey(collection, id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return decodeDocument(raw)
}

// Query intersects the index sets of every indexed clause and falls back to the
// whole collection set when no clause is indexed. Candidates are always re-checked
// against the full predicate.
func (r *DocumentStore) Query(ctx context.Context, collection string, where domain.Predicate, _ domain.ReadMode) ([]domain.Snapshot, error) {
	ids, err := r.candidates(ctx, collection, where)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = documentKey(collection, id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []domain.Snapshot
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document.
			continue
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", keys[i], err)
		}
		if where.Matches(doc) {
			out = append(out, domain.Snapshot{ID: ids[i], Data: doc})
		}
	}
	return out, nil
}

func (r *DocumentStore) candidates(ctx context.Context, collection string, where domain.Predicate) ([]string, error) {
	var sets []string
	for _, field := range where.Fields() {
		if !r.isIndexed(collection, field) {
			continue
		}
		if value, ok := indexValue(where[field]); ok {
			sets = append(sets, indexKey(collection, field, value))
		}
	}

	switch len(sets) {
	case 0:
		return r.client.SMembers(ctx, collectionKey(collection)).Result()
	case 1:
		return r.client.SMembers(ctx, sets[0]).Result()
	default:
		return r.client.SInter(ctx, sets...).Result()
	}
}

func (r *DocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	n, err := r.write(ctx, collection, id, fields, "update")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentStore) Set(ctx context.Context, collection, id string, fields domain.Document, merge bool) error {
	mode := "replace"
	if merge {
		mode = "merge"
	}
	_, err := r.write(ctx, collection, id, fields, mode)
	return err
}

func (r *DocumentStore) write(ctx context.Context, collection, id string, fields domain.Document, mode string) (int64, error) {
	if fields == nil {
		fields = domain.Document{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}

	args := []interface{}{string(data), id, mode, indexPrefix(collection)}
	for _, f := range r.indexes[collection] {
		args = append(args, f)
	}

	return r.client.Eval(ctx, writeScript,
		[]string{documentKey(collection, id), collectionKey(collection)},
		args...).Int64()
}

// Reindex rebuilds the index sets of a collection from its documents. It is meant
// for data written before an index existed or by another producer.
func (r *DocumentStore) Reindex(ctx context.Context, collection string) (int, error) {
	fields := r.indexes[collection]
	if len(fields) == 0 {
		return 0, nil
	}

	snapshots, err := r.Query(ctx, collection, domain.Predicate{}, domain.ReadStrong)
	if err != nil {
		return 0, err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, s := range snapshots {
			for _, f := range fields {
				if value, ok := indexValue(s.Data[f]); ok {
					p.SAdd(ctx, indexKey(collection, f, value), s.ID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(snapshots), nil
}

func decodeDocument(raw string) (domain.Document, error) {
	// Some cjson builds encode an empty table as an empty array.
	if raw == "[]" {
		return domain.Document{}, nil
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = domain.Document{}
	}
	return doc, nil
}
