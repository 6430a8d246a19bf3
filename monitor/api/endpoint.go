package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/fedbench/fedsim/monitor"
)

func MakeStatusEndpoint(svc monitor.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return nil, err
		}

		return StatusResponseDTO{
			RunID:        status.RunID,
			Strategy:     status.Strategy,
			State:        status.State,
			CurrentRound: status.CurrentRound,
			TotalRounds:  status.TotalRounds,
			NumClients:   status.NumClients,
			LatestLoss:   status.LatestLoss,
			StartTime:    status.StartTime,
			Error:        status.Error,
		}, nil
	}
}

func MakeHistoryEndpoint(svc monitor.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		return svc.History(ctx)
	}
}
