package depthservice

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nci/gbathy/catalog"
	"github.com/nci/gbathy/processor"
	"github.com/nci/gbathy/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

var testGrid = processor.Grid{CRS: "EPSG:32755", GeoTransform: []float64{500000, 30, 0, 7000000, 0, -30}, Width: 2, Height: 1}

// canonicalImage is a two pixel water acquisition already in the
// canonical band schema.
func canonicalImage(id string, year int) *processor.RasterImage {
	values := []float32{300, 1000, 800, 500, 200, 100}
	img := &processor.RasterImage{
		Grid:       testGrid,
		ID:         id,
		Generation: "LE07",
		TimeStamp:  time.Date(year, 7, 1, 0, 0, 0, 0, time.UTC),
		Properties: map[string]string{},
	}
	for i, name := range utils.CanonicalBands {
		b := processor.NewBand(name, testGrid.Size())
		for j := range b.Data {
			b.Data[j] = values[i]
			b.Valid[j] = true
		}
		img.Bands = append(img.Bands, b)
	}
	return img
}

func testPlan(year int, images ...*processor.RasterImage) *processor.YearPlan {
	var refs []*processor.ImageRef
	for _, img := range images {
		img := img
		header := processor.ImageHeader{ID: img.ID, Generation: img.Generation, TimeStamp: img.TimeStamp, BandNames: img.BandNames()}
		refs = append(refs, processor.NewImageRef(header, func(ctx context.Context) (*processor.RasterImage, error) {
			return img, nil
		}))
	}
	params, err := processor.ModelParamsFromConfig(utils.DefaultConfig())
	if err != nil {
		panic(err)
	}
	return &processor.YearPlan{Year: year, Series: processor.NewImageSeries(refs...), Params: params}
}

// planWorker answers requests by evaluating the plans it was built
// with, keyed by year.
type planWorker struct {
	plans map[int]*processor.YearPlan
	calls int32
}

func (w *planWorker) ComputeYear(ctx context.Context, req *YearRequest) (*YearResult, error) {
	atomic.AddInt32(&w.calls, 1)
	plan, ok := w.plans[req.Year]
	if !ok {
		return nil, errors.New("no such year")
	}
	d, err := processor.EvaluateYear(ctx, plan)
	if err != nil {
		return nil, err
	}
	return NewYearResult(d, "plan-worker"), nil
}

func serve(t *testing.T, srv DepthWorkerServer) *Client {
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterDepthWorkerServer(s, srv)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	client, err := NewClient([]string{"passthrough:///bufnet"}, testGrid, dialer)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientEvaluate(t *testing.T) {
	plan := testPlan(2005, canonicalImage("a", 2005), canonicalImage("b", 2005))
	worker := &planWorker{plans: map[int]*processor.YearPlan{2005: plan}}
	client := serve(t, worker)

	local, err := processor.EvaluateYear(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	remote, err := client.Evaluate(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}

	if remote.Year != 2005 || remote.ImageCount != 2 || remote.BandCount != local.BandCount {
		t.Errorf("unexpected meta %+v", remote.CompositeMeta)
	}
	if remote.Properties["worker"] != "plan-worker" {
		t.Errorf("worker property not set: %v", remote.Properties)
	}
	if !remote.Grid.Equal(local.Grid) {
		t.Errorf("grid %+v, expected %+v", remote.Grid, local.Grid)
	}
	ld, rd := local.Depth(), remote.Depth()
	for i := range ld.Data {
		if ld.Data[i] != rd.Data[i] || ld.Valid[i] != rd.Valid[i] {
			t.Errorf("pixel %d: remote %v/%v local %v/%v", i, rd.Data[i], rd.Valid[i], ld.Data[i], ld.Valid[i])
		}
	}
}

func TestClientEmptyYearIsLocal(t *testing.T) {
	worker := &planWorker{}
	client := serve(t, worker)

	d, err := client.Evaluate(context.Background(), testPlan(2010))
	if err != nil {
		t.Fatal(err)
	}
	if d.BandCount != 0 || d.Depth() != nil {
		t.Errorf("expected an empty depth map, got %+v", d.CompositeMeta)
	}
	if worker.calls != 0 {
		t.Errorf("empty year reached the worker %d times", worker.calls)
	}
}

func TestClientWorkerError(t *testing.T) {
	client := serve(t, &planWorker{})
	if _, err := client.Evaluate(context.Background(), testPlan(2011, canonicalImage("c", 2011))); err == nil {
		t.Error("expected the worker error to reach the caller")
	}
}

func TestNewYearRequest(t *testing.T) {
	plan := testPlan(2005, canonicalImage("b", 2005), canonicalImage("a", 2005))
	req := NewYearRequest(plan, testGrid)
	if ids := req.Scenes["LE07"]; len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("unexpected scenes %v", req.Scenes)
	}
	params, err := req.Params.ModelParams()
	if err != nil {
		t.Fatal(err)
	}
	if params.Chla != plan.Params.Chla || params.LandPolicy != plan.Params.LandPolicy || params.DegeneratePolicy != plan.Params.DegeneratePolicy {
		t.Errorf("params %+v, expected %+v", params, plan.Params)
	}
	if !req.Grid.Grid().Equal(testGrid) {
		t.Errorf("unexpected grid %+v", req.Grid)
	}
}

func TestProcessPool(t *testing.T) {
	pool := CreateProcessPool(2, func(ctx context.Context, req *YearRequest) (*YearResult, error) {
		if req.Year < 0 {
			return nil, errors.New("bad year")
		}
		return &YearResult{Year: req.Year}, nil
	}, nil)
	defer pool.Close()

	task := NewTask(context.Background(), &YearRequest{Year: 1999})
	pool.AddQueue(task)
	select {
	case res := <-task.Resp:
		if res.Year != 1999 {
			t.Errorf("unexpected year %d", res.Year)
		}
	case err := <-task.Error:
		t.Fatal(err)
	}

	task = NewTask(context.Background(), &YearRequest{Year: -1})
	pool.AddQueue(task)
	if err := <-task.Error; err == nil || err.Error() != "bad year" {
		t.Errorf("unexpected error %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task = NewTask(ctx, &YearRequest{Year: 2000})
	pool.AddQueue(task)
	if err := <-task.Error; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// staticCatalog returns the same records for every query.
type staticCatalog []*catalog.SceneRecord

func (c staticCatalog) Query(ctx context.Context, q catalog.SceneQuery) ([]*catalog.SceneRecord, error) {
	var out []*catalog.SceneRecord
	for _, rec := range c {
		if rec.Generation == q.Generation {
			out = append(out, rec)
		}
	}
	return out, nil
}

func testServer(t *testing.T, cat catalog.Catalog) *Server {
	var cfg atomic.Pointer[utils.Config]
	cfg.Store(utils.DefaultConfig())
	s := NewServer(&cfg, cat, 1, "test-worker", nil)
	t.Cleanup(s.Close)
	return s
}

func TestServerUnknownScene(t *testing.T) {
	s := testServer(t, staticCatalog{})
	req := NewYearRequest(testPlan(2005, canonicalImage("missing", 2005)), testGrid)

	_, err := s.ComputeYear(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "unknown to worker test-worker") {
		t.Errorf("expected unknown scene error, got %v", err)
	}
}

func TestServerEmptyYear(t *testing.T) {
	s := testServer(t, staticCatalog{})
	res, err := s.ComputeYear(context.Background(), NewYearRequest(testPlan(2005), testGrid))
	if err != nil {
		t.Fatal(err)
	}
	if res.Year != 2005 || res.Meta.BandCount != 0 || res.Depth != nil || res.Worker != "test-worker" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestServerUnknownGeneration(t *testing.T) {
	s := testServer(t, staticCatalog{})
	img := canonicalImage("x", 2005)
	img.Generation = "S2A"
	req := NewYearRequest(testPlan(2005, img), testGrid)

	if _, err := s.ComputeYear(context.Background(), req); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("expected unknown generation error, got %v", err)
	}
}
