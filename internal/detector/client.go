// Package detector wraps the external face/object model service and
// normalizes its outputs into detection records.
package detector

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"AI_PROCTOR/go-backend/internal/models"
)

// Detector is the black-box model boundary. Implementations return
// zero-or-more observations for a single frame.
type Detector interface {
	DetectFaces(ctx context.Context, frame []byte) ([]models.FaceObservation, error)
	DetectObjects(ctx context.Context, frame []byte) ([]models.ObjectObservation, error)
}

const (
	detectFacesMethod   = "/proctor.v1.Detector/DetectFaces"
	detectObjectsMethod = "/proctor.v1.Detector/DetectObjects"
	healthMethod        = "/proctor.v1.Detector/Health"
)

type detectRequest struct {
	FrameData []byte `json:"frame_data"`
	Timestamp int64  `json:"timestamp"`
}

type facesResponse struct {
	Faces []models.FaceObservation `json:"faces"`
}

type objectsResponse struct {
	Objects []models.ObjectObservation `json:"objects"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type Client struct {
	conn *grpc.ClientConn
	url  string
}

func NewClient(url string) (*Client, error) {
	log.Printf("Connecting to detector gRPC at %s", url)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(jsonCodec{}),
			grpc.MaxCallRecvMsgSize(50*1024*1024),
			grpc.MaxCallSendMsgSize(50*1024*1024),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.Dial(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to detector at %s: %w", url, err)
	}

	log.Printf("Connected to detector gRPC at %s", url)

	return &Client{
		conn: conn,
		url:  url,
	}, nil
}

func (c *Client) DetectFaces(ctx context.Context, frame []byte) ([]models.FaceObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req := &detectRequest{FrameData: frame, Timestamp: time.Now().UnixMilli()}
	var resp facesResponse
	if err := c.conn.Invoke(ctx, detectFacesMethod, req, &resp); err != nil {
		return nil, fmt.Errorf("could not detect faces: %w", err)
	}
	return resp.Faces, nil
}

func (c *Client) DetectObjects(ctx context.Context, frame []byte) ([]models.ObjectObservation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req := &detectRequest{FrameData: frame, Timestamp: time.Now().UnixMilli()}
	var resp objectsResponse
	if err := c.conn.Invoke(ctx, detectObjectsMethod, req, &resp); err != nil {
		return nil, fmt.Errorf("could not detect objects: %w", err)
	}
	return resp.Objects, nil
}

func (c *Client) HealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var resp healthResponse
	err := c.conn.Invoke(ctx, healthMethod, &detectRequest{}, &resp)
	return err == nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

var _ Detector = (*Client)(nil)
