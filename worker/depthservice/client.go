package depthservice

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/nci/gbathy/processor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const DefaultMaxRecvMsgSize = 1 << 30

// Client fans year plans out to depth workers, round robin. It
// implements processor.YearEvaluator.
type Client struct {
	Grid      processor.Grid
	addresses []string
	conns     []*grpc.ClientConn
	next      uint32
}

// NewClient connects to every address. Scenes are sampled by the
// workers onto grid.
func NewClient(addresses []string, grid processor.Grid, opts ...grpc.DialOption) (*Client, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no depth worker address")
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName), grpc.MaxCallRecvMsgSize(DefaultMaxRecvMsgSize)),
	}
	dialOpts = append(dialOpts, opts...)

	c := &Client{Grid: grid, addresses: addresses}
	for _, addr := range addresses {
		conn, err := grpc.NewClient(addr, dialOpts...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("gRPC connection problem: %v", err)
		}
		c.conns = append(c.conns, conn)
	}
	c.next = uint32(rand.Intn(len(c.conns)))
	return c, nil
}

func (c *Client) ComputeYear(ctx context.Context, req *YearRequest) (*YearResult, error) {
	idx := int(atomic.AddUint32(&c.next, 1) % uint32(len(c.conns)))
	out := new(YearResult)
	if err := c.conns[idx].Invoke(ctx, computeYearMethod, req, out); err != nil {
		return nil, fmt.Errorf("worker %s: %w", c.addresses[idx], err)
	}
	return out, nil
}

// Evaluate computes plan remotely. Years without imagery are
// evaluated in process.
func (c *Client) Evaluate(ctx context.Context, plan *processor.YearPlan) (*processor.DepthMap, error) {
	if plan.Series.Len() == 0 {
		return processor.EvaluateYear(ctx, plan)
	}
	res, err := c.ComputeYear(ctx, NewYearRequest(plan, c.Grid))
	if err != nil {
		return nil, err
	}
	return res.DepthMap(), nil
}

func (c *Client) Close() error {
	for _, conn := range c.conns {
		conn.Close()
	}
	return nil
}
