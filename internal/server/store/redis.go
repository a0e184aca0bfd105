package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JreyForFun/Whispr/internal/backend"
)

// Key layout.
const (
	keyQueueHash      = "whispr:queue"          // sid -> QueueEntry JSON
	keyWaitingVideo   = "whispr:waiting:video"  // zset sid scored by last ping
	keyWaitingText    = "whispr:waiting:text"   // zset sid scored by last ping
	keyRoomsSet       = "whispr:rooms"          // set of room ids
	keyRoomPrefix     = "whispr:room:"          // room id -> Room JSON
	keySessionsPrefix = "whispr:session_rooms:" // sid -> zset of room ids by created
	keyReports        = "whispr:reports"        // list of Report JSON
)

// matchScript pairs the caller with the longest-waiting compatible entry in
// one atomic round trip: sweep stale entries, pick a partner, consume both
// queue entries and create the room record plus its session indexes.
var matchScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local candidates = redis.call('ZRANGE', KEYS[1], 0, 15)
for _, partner in ipairs(candidates) do
	if partner ~= ARGV[1] then
		redis.call('ZREM', KEYS[1], partner, ARGV[1])
		redis.call('HDEL', KEYS[2], partner, ARGV[1])
		local room = string.format(ARGV[5], partner)
		redis.call('SET', ARGV[6] .. ARGV[4], room)
		redis.call('SADD', KEYS[3], ARGV[4])
		redis.call('ZADD', ARGV[7] .. ARGV[1], ARGV[3], ARGV[4])
		redis.call('ZADD', ARGV[7] .. partner, ARGV[3], ARGV[4])
		return partner
	end
end
return false
`)

// Redis is the Store backed by a shared Redis, for running more than one
// whisprd instance.
type Redis struct {
	client   *redis.Client
	entryTTL time.Duration
}

// NewRedis connects and verifies the Redis backend.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, entryTTL: DefaultEntryTTL}, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func waitingKey(constraints backend.Constraints) string {
	if constraints.HasVideo {
		return keyWaitingVideo
	}
	return keyWaitingText
}

func (r *Redis) FindRoomBySession(ctx context.Context, sessionID string) (*backend.Room, error) {
	roomIDs, err := r.client.ZRevRange(ctx, keySessionsPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	for _, roomID := range roomIDs {
		data, err := r.client.Get(ctx, keyRoomPrefix+roomID).Result()
		if err == redis.Nil {
			// Index entry outlived the room; drop it.
			r.client.ZRem(ctx, keySessionsPrefix+sessionID, roomID)
			continue
		}
		if err != nil {
			return nil, err
		}
		var room backend.Room
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return nil, err
		}
		return &room, nil
	}
	return nil, ErrNotFound
}

func (r *Redis) UpsertQueueEntry(ctx context.Context, entry backend.QueueEntry) error {
	if entry.LastPing.IsZero() {
		entry.LastPing = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, keyQueueHash, entry.SessionID, data)
	pipe.ZAdd(ctx, waitingKey(entry.Constraints), redis.Z{
		Score:  float64(entry.LastPing.Unix()),
		Member: entry.SessionID,
	})
	// A session switching modes must not stay matchable in the old one.
	pipe.ZRem(ctx, otherWaitingKey(entry.Constraints), entry.SessionID)
	_, err = pipe.Exec(ctx)
	return err
}

func otherWaitingKey(constraints backend.Constraints) string {
	return waitingKey(backend.Constraints{HasVideo: !constraints.HasVideo})
}

func (r *Redis) Match(ctx context.Context, sessionID string, constraints backend.Constraints) (*backend.Match, error) {
	now := time.Now().UTC()
	roomID := uuid.New().String()

	room := backend.Room{
		ID:           roomID,
		UserASession: sessionID,
		UserBSession: "%s", // filled with the partner id inside the script
		CreatedAt:    now,
	}
	template, err := json.Marshal(room)
	if err != nil {
		return nil, err
	}

	result, err := matchScript.Run(ctx, r.client,
		[]string{waitingKey(constraints), keyQueueHash, keyRoomsSet},
		sessionID,
		now.Add(-r.entryTTL).Unix(),
		now.Unix(),
		roomID,
		string(template),
		keyRoomPrefix,
		keySessionsPrefix,
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	partner, ok := result.(string)
	if !ok || partner == "" {
		return nil, nil
	}
	return &backend.Match{RoomID: roomID, PartnerSessionID: partner}, nil
}

func (r *Redis) DeleteRoom(ctx context.Context, roomID string) error {
	data, err := r.client.Get(ctx, keyRoomPrefix+roomID).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var room backend.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keyRoomPrefix+roomID)
	pipe.SRem(ctx, keyRoomsSet, roomID)
	pipe.ZRem(ctx, keySessionsPrefix+room.UserASession, roomID)
	pipe.ZRem(ctx, keySessionsPrefix+room.UserBSession, roomID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) InsertReport(ctx context.Context, report backend.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, keyReports, data).Err()
}

func (r *Redis) Counts(ctx context.Context) (int, int, error) {
	cutoff := fmt.Sprintf("%d", time.Now().UTC().Add(-r.entryTTL).Unix())

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, keyWaitingVideo, "-inf", cutoff)
	pipe.ZRemRangeByScore(ctx, keyWaitingText, "-inf", cutoff)
	video := pipe.ZCard(ctx, keyWaitingVideo)
	text := pipe.ZCard(ctx, keyWaitingText)
	rooms := pipe.SCard(ctx, keyRoomsSet)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	return int(video.Val() + text.Val()), int(rooms.Val()), nil
}
