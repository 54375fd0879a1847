package fixture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/codec"
)

var addresses = Identity{Service: "ec2", Operation: "DescribeAddresses"}

func record(marker string) Record {
	return Record{StatusCode: 200, Data: codec.Mapping{"Marker": codec.String(marker)}}
}

func marker(t *testing.T, rec Record) string {
	t.Helper()
	m, ok := rec.Data.(codec.Mapping)
	require.True(t, ok, "data is %T", rec.Data)
	return string(m["Marker"].(codec.String))
}

func TestSaveAndReplayInOrder(t *testing.T) {
	ctx := context.Background()
	for _, format := range codec.Formats() {
		t.Run(format, func(t *testing.T) {
			s := NewStore(storage.NewDirBucket(t.TempDir()), WithFormat(codec.MustLookup(format)))

			for _, m := range []string{"R1", "R2", "R3"} {
				_, err := s.Save(ctx, addresses, record(m))
				require.NoError(t, err)
			}

			var got []string
			for i := 0; i < 4; i++ {
				rec, err := s.LoadNext(ctx, addresses)
				require.NoError(t, err)
				assert.Equal(t, 200, rec.StatusCode)
				got = append(got, marker(t, rec))
			}
			assert.Equal(t, []string{"R1", "R2", "R3", "R1"}, got)
		})
	}
}

func TestSaveAllocatesGaplessIndices(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewDirBucket(t.TempDir())
	s := NewStore(bucket)

	for i := 1; i <= 150; i++ {
		key, err := s.Save(ctx, addresses, record(fmt.Sprint(i)))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("ec2.DescribeAddresses_%d.json", i), key)
	}

	n, err := s.Count(ctx, addresses)
	require.NoError(t, err)
	assert.Equal(t, 150, n)

	// Numeric, not lexical, ordering: _10 comes after _9.
	for i := 1; i <= 12; i++ {
		rec, err := s.LoadNext(ctx, addresses)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), marker(t, rec))
	}
}

func TestConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryBucket())

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Save(ctx, addresses, record(fmt.Sprint(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 25)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Index)
	}
}

func TestConcurrentLoadNext(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryBucket())

	const n = 20
	want := make([]string, n)
	for i := range n {
		want[i] = fmt.Sprintf("R%d", i+1)
		_, err := s.Save(ctx, addresses, record(want[i]))
		require.NoError(t, err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = make(map[string]int, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.LoadNext(ctx, addresses)
			if !assert.NoError(t, err) {
				return
			}
			m, _ := rec.Data.(codec.Mapping)["Marker"].(codec.String)
			mu.Lock()
			got[string(m)]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, got, n, "every fixture is served once before wrapping")
	for _, m := range want {
		assert.Equal(t, 1, got[m], m)
	}

	rec, err := s.LoadNext(ctx, addresses)
	require.NoError(t, err)
	assert.Equal(t, "R1", marker(t, rec), "the next load wraps to the first fixture")
}

func TestSparseIndices(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryBucket()
	s := NewStore(bucket)

	for _, idx := range []int{2, 5} {
		data, err := Encode(s.Format(), record(fmt.Sprintf("R%d", idx)))
		require.NoError(t, err)
		require.NoError(t, bucket.Create(ctx, s.Key(addresses, idx), data))
	}
	// Look-alike keys that must not be counted.
	require.NoError(t, bucket.Create(ctx, "ec2.DescribeAddresses_9.yaml", []byte("{}")))
	require.NoError(t, bucket.Create(ctx, "ec2.DescribeAddresses_x_3.json", []byte("{}")))

	key, err := s.Save(ctx, addresses, record("R6"))
	require.NoError(t, err)
	assert.Equal(t, "ec2.DescribeAddresses_6.json", key, "append after the highest index")

	var got []string
	for i := 0; i < 4; i++ {
		rec, err := s.LoadNext(ctx, addresses)
		require.NoError(t, err)
		got = append(got, marker(t, rec))
	}
	assert.Equal(t, []string{"R2", "R5", "R6", "R2"}, got)
}

func TestLoadNextNotFound(t *testing.T) {
	s := NewStore(storage.NewDirBucket(filepath.Join(t.TempDir(), "never-created")))
	_, err := s.LoadNext(context.Background(), Identity{Service: "iam", Operation: "ListUsers"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptFixtures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		body string
	}{
		{"not json", "this is not a fixture"},
		{"not a mapping", "[1, 2]"},
		{"missing data", `{"status_code": 200}`},
		{"status not integer", `{"status_code": "200", "data": null}`},
		{"status out of range", `{"status_code": 42, "data": null}`},
		{"bad datetime", `{"status_code": 200, "data": {"__class__": "datetime", "year": 2015}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket := storage.NewMemoryBucket()
			s := NewStore(bucket)
			require.NoError(t, bucket.Create(ctx, s.Key(addresses, 1), []byte(tt.body)))

			_, err := s.LoadNext(ctx, addresses)
			assert.ErrorIs(t, err, ErrCorruptFixture)
		})
	}
}

func TestIdentities(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryBucket()
	s := NewStore(bucket, WithPrefix("billing"))

	fp := "3f1c6d8a1f0b2e4d5c6b7a8990a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3"
	keyed := Identity{Service: "ec2", Operation: "DescribeAddresses", Fingerprint: fp}

	k1, err := s.Save(ctx, addresses, record("plain"))
	require.NoError(t, err)
	k2, err := s.Save(ctx, keyed, record("keyed"))
	require.NoError(t, err)
	assert.Equal(t, "billing.ec2.DescribeAddresses_1.json", k1)
	assert.Equal(t, "billing.ec2.DescribeAddresses."+fp+"_1.json", k2)

	rec, err := s.LoadNext(ctx, keyed)
	require.NoError(t, err)
	assert.Equal(t, "keyed", marker(t, rec))
	rec, err = s.LoadNext(ctx, addresses)
	require.NoError(t, err)
	assert.Equal(t, "plain", marker(t, rec))

	_, err = s.Save(ctx, Identity{Service: "ec2"}, record("x"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	_, err = s.Save(ctx, Identity{Service: "ec2", Operation: "a/b"}, record("x"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, addresses, entries[0].Identity)
	assert.Equal(t, keyed, entries[1].Identity)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryBucket())
	for _, m := range []string{"R1", "R2"} {
		_, err := s.Save(ctx, addresses, record(m))
		require.NoError(t, err)
	}

	rec, err := s.LoadNext(ctx, addresses)
	require.NoError(t, err)
	assert.Equal(t, "R1", marker(t, rec))

	s.Reset()
	rec, err = s.LoadNext(ctx, addresses)
	require.NoError(t, err)
	assert.Equal(t, "R1", marker(t, rec))
}

func TestDefaultStatusAndNullData(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryBucket())
	_, err := s.Save(ctx, addresses, Record{})
	require.NoError(t, err)

	rec, err := s.LoadNext(ctx, addresses)
	require.NoError(t, err)
	assert.Equal(t, DefaultStatusCode, rec.StatusCode)
	assert.Equal(t, codec.Null{}, rec.Data)
}

func TestParseKey(t *testing.T) {
	fp := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	tests := []struct {
		key    string
		prefix string
		want   Entry
		ok     bool
	}{
		{key: "ec2.DescribeAddresses_1.json", ok: true,
			want: Entry{Identity: addresses, Index: 1, Format: "json"}},
		{key: "p.ec2.DescribeAddresses_12.yaml", prefix: "p", ok: true,
			want: Entry{Identity: addresses, Index: 12, Format: "yaml"}},
		{key: "ec2.Describe_Things_3.gob", ok: true,
			want: Entry{Identity: Identity{Service: "ec2", Operation: "Describe_Things"}, Index: 3, Format: "gob"}},
		{key: "s3.GetObject." + fp + "_2.json", ok: true,
			want: Entry{Identity: Identity{Service: "s3", Operation: "GetObject", Fingerprint: fp}, Index: 2, Format: "json"}},
		{key: "ec2.DescribeAddresses_0.json"},
		{key: "ec2.DescribeAddresses.json"},
		{key: "ec2.DescribeAddresses_1.txt"},
		{key: "p.ec2.DescribeAddresses_1.json"},
		{key: "ec2.DescribeAddresses_1.json", prefix: "p"},
		{key: "Sub/ec2.DescribeAddresses_1.json"},
		{key: "p.Sub/ec2.DescribeAddresses_1.json", prefix: "p"},
		{key: `Sub\ec2.DescribeAddresses_1.json`},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"|"+tt.key, func(t *testing.T) {
			got, ok := ParseKey(tt.key, tt.prefix)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			tt.want.Key = tt.key
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListSkipsNestedDirectories(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	parent := NewStore(storage.NewDirBucket(root))
	child := NewStore(storage.NewDirBucket(filepath.Join(root, "Sub")))

	_, err := parent.Save(ctx, addresses, record("parent"))
	require.NoError(t, err)
	_, err = child.Save(ctx, addresses, record("child"))
	require.NoError(t, err)

	entries, err := parent.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ec2.DescribeAddresses_1.json", entries[0].Key)

	n, err := parent.Count(ctx, addresses)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJSONFixtureLayout(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemoryBucket()
	s := NewStore(bucket)

	key, err := s.Save(ctx, addresses, Record{
		StatusCode: 200,
		Data: codec.Mapping{
			"Addresses": codec.Sequence{codec.Mapping{
				"PublicIp": codec.String("52.53.54.55"),
				"Domain":   codec.String("vpc"),
			}},
			"Created": codec.NewTimestamp(time.Date(2015, 1, 4, 9, 1, 2, 123000, time.UTC)),
			"Body":    codec.BinaryStream("hello"),
			"Ratio":   codec.Float(1),
		},
	})
	require.NoError(t, err)

	raw, err := bucket.Read(ctx, key)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "ec2_describe_addresses", raw)
}
