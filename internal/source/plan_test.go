package source

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"splitread/pkg/records"
)

func TestPlanSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		path      string
		size      int64
		splitSize int64
		want      []records.Split
	}{
		{"empty", "a.csv", 0, 10, nil},
		{"no_split_size", "a.csv", 25, 0, []records.Split{{Path: "a.csv", Length: 25, FileLength: 25}}},
		{"larger_than_file", "a.csv", 25, 100, []records.Split{{Path: "a.csv", Length: 25, FileLength: 25}}},
		{"uneven", "a.csv", 25, 10, []records.Split{
			{Path: "a.csv", Start: 0, Length: 10, FileLength: 25},
			{Path: "a.csv", Start: 10, Length: 10, FileLength: 25},
			{Path: "a.csv", Start: 20, Length: 5, FileLength: 25},
		}},
		{"compressed", "a.csv.zst", 25, 10, []records.Split{{Path: "a.csv.zst", Length: math.MaxInt64, FileLength: 25}}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := PlanSize(c.path, c.size, c.splitSize)
			if len(got) != len(c.want) {
				t.Fatalf("got %d splits, want %d: %v", len(got), len(c.want), got)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("split %d = %+v, want %+v", i, got[i], c.want[i])
				}
			}
		})
	}
}

func TestPlan_LocalFile(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "v.csv", []byte(vanilla))
	splits, err := Plan(context.Background(), p, 10)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(splits) != 4 || splits[3].End() != int64(len(vanilla)) {
		t.Fatalf("splits = %v", splits)
	}
	if _, err := Plan(context.Background(), p+".missing", 10); err == nil {
		t.Fatal("Plan of a missing file succeeded")
	}
}

func TestPlan_UnknownRemoteSize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Transfer-Encoding", "chunked")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
	defer srv.Close()

	u := srv.URL + "/stream.csv"
	splits, err := Plan(context.Background(), u, 10)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := records.Split{Path: u, Length: math.MaxInt64}
	if len(splits) != 1 || splits[0] != want {
		t.Fatalf("splits = %v, want [%v]", splits, want)
	}
}
