package landmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/Trendyol/go-triton-client/base"
	tritonGrpc "github.com/Trendyol/go-triton-client/client/grpc"

	"postureguard/internal/camera"
	"postureguard/internal/posture"
)

// COCO keypoint layout used by the pose model: 17 points of (x, y, score).
const (
	cocoKeypoints = 17
	cocoStride    = 3

	cocoLeftEar       = 3
	cocoRightEar      = 4
	cocoLeftShoulder  = 5
	cocoRightShoulder = 6
)

const (
	inputFrame      = "FRAME"
	outputKeypoints = "KEYPOINTS"
)

type TritonOptions struct {
	ServerAddr string
	ModelName  string
	MinScore   float32
}

// TritonProvider sends frames to a keypoint model served by Triton.
type TritonProvider struct {
	cli      base.Client
	model    string
	minScore float32
}

func NewTritonProvider(opts TritonOptions) (*TritonProvider, error) {
	if opts.ModelName == "" {
		return nil, errors.New("triton model name is empty")
	}
	cli, err := tritonGrpc.NewClient(
		opts.ServerAddr,
		false, // verbose logging
		30,    // connection timeout in seconds
		30,    // network timeout in seconds
		false, // use SSL
		true,  // insecure connection
		nil,   // existing gRPC connection
		nil,   // logger
	)
	if err != nil {
		return nil, fmt.Errorf("create triton client: %w", err)
	}
	return &TritonProvider{cli: cli, model: opts.ModelName, minScore: opts.MinScore}, nil
}

// Ready checks that the server and the model can serve requests.
func (p *TritonProvider) Ready(ctx context.Context) error {
	if isLive, err := p.cli.IsServerLive(ctx, nil); err != nil {
		return err
	} else if !isLive {
		return errors.New("triton server is not live")
	}
	if isReady, err := p.cli.IsModelReady(ctx, p.model, "1", nil); err != nil {
		return err
	} else if !isReady {
		return fmt.Errorf("triton model %s is not ready", p.model)
	}
	return nil
}

func (p *TritonProvider) Detect(ctx context.Context, frame *camera.Frame) (*posture.KeypointSet, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, nil
	}
	if len(frame.Data) != frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame %d: %d bytes for %dx%d BGR", frame.Seq, len(frame.Data), frame.Width, frame.Height)
	}

	frameInput := tritonGrpc.NewInferInput(inputFrame, "BYTES", []int64{int64(frame.Height), int64(frame.Width), 3}, nil)
	if err := frameInput.SetData(frame.Data, true); err != nil {
		return nil, fmt.Errorf("failed to set FRAME input data: %v", err)
	}
	frameInput.SetDatatype("UINT8")

	outputs := []base.InferOutput{
		tritonGrpc.NewInferOutput(outputKeypoints, map[string]any{"binary_data": false}),
	}

	response, err := p.cli.Infer(ctx, p.model, "1", []base.InferInput{frameInput}, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %v", err)
	}

	data, err := response.AsFloat32Slice(outputKeypoints)
	if err != nil {
		return nil, fmt.Errorf("failed to get keypoint data: %v", err)
	}
	return keypointsFromTensor(data, p.minScore), nil
}

// keypointsFromTensor picks the most confident person in a [N, 17, 3] tensor.
// It returns nil when no person has all four landmarks above minScore.
func keypointsFromTensor(data []float32, minScore float32) *posture.KeypointSet {
	personLen := cocoKeypoints * cocoStride
	var best *posture.KeypointSet
	var bestScore float32 = -1

	for off := 0; off+personLen <= len(data); off += personLen {
		person := data[off : off+personLen]
		score := float32(0)
		complete := true
		for _, idx := range []int{cocoLeftEar, cocoRightEar, cocoLeftShoulder, cocoRightShoulder} {
			s := person[idx*cocoStride+2]
			if s < minScore {
				complete = false
				break
			}
			score += s
		}
		if !complete || score <= bestScore {
			continue
		}
		bestScore = score
		best = &posture.KeypointSet{
			LeftShoulder:  point(person, cocoLeftShoulder),
			RightShoulder: point(person, cocoRightShoulder),
			LeftEar:       point(person, cocoLeftEar),
			RightEar:      point(person, cocoRightEar),
		}
	}
	return best
}

func point(person []float32, idx int) posture.Point {
	return posture.Point{
		X: float64(person[idx*cocoStride]),
		Y: float64(person[idx*cocoStride+1]),
	}
}
