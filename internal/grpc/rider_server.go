package grpcserver

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/internal/service"
)

// RiderServer implements RiderService RPCs on top of the portal services.
type RiderServer struct {
	Services *service.Services
}

var _ RiderServiceServer = (*RiderServer)(nil)

// toStatus maps an application error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var c codes.Code
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		c = codes.InvalidArgument
	case apperr.CodeNotFound:
		c = codes.NotFound
	case apperr.CodeConflict:
		c = codes.FailedPrecondition
	case apperr.CodeForbidden:
		c = codes.PermissionDenied
	case apperr.CodeUnauthenticated:
		c = codes.Unauthenticated
	default:
		c = codes.Internal
	}
	return status.Error(c, apperr.Message(err))
}

// actorFrom builds the audit actor for p from the peer address.
func actorFrom(ctx context.Context, p *auth.Principal) auth.Actor {
	ip := ""
	if pr, ok := peer.FromContext(ctx); ok && pr.Addr != nil {
		ip = pr.Addr.String()
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return p.Actor(ip)
}

func str(in *structpb.Struct, key string) string {
	if v, ok := in.GetFields()[key]; ok {
		return strings.TrimSpace(v.GetStringValue())
	}
	return ""
}

func num(in *structpb.Struct, key string) (float64, bool) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

// toStruct converts a JSON-tagged model into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// Health is served without authentication.
func (s *RiderServer) Health(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ReportLocation stores the rider's position. Drivers may only report for
// themselves; riderId defaults to the caller.
func (s *RiderServer) ReportLocation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := auth.RequireRider(ctx)
	if err != nil {
		return nil, err
	}
	riderID := str(in, "riderId")
	if riderID == "" {
		riderID = p.ID
	}
	if !p.HasRole(auth.RoleAdmin) && riderID != p.ID {
		return nil, status.Error(codes.PermissionDenied, "drivers may only report their own location")
	}
	lat, okLat := num(in, "lat")
	lng, okLng := num(in, "lng")
	if !okLat || !okLng {
		return nil, status.Error(codes.InvalidArgument, "lat and lng are required")
	}

	rd, err := s.Services.Riders.UpdateLocation(ctx, actorFrom(ctx, p), riderID, lat, lng, str(in, "status"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(rd)
}

// UpdatePickupStatus applies a pickup transition reported from the field.
// A driver assigning a pickup without riderId assigns it to itself.
func (s *RiderServer) UpdatePickupStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := auth.RequireRider(ctx)
	if err != nil {
		return nil, err
	}
	id := str(in, "pickupId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "pickupId is required")
	}
	req := service.PickupTransition{
		Status:        str(in, "status"),
		RiderID:       str(in, "riderId"),
		FailureReason: str(in, "failureReason"),
		Remarks:       str(in, "remarks"),
	}
	if req.RiderID == "" && p.HasRole(auth.RoleDriver) && strings.EqualFold(req.Status, "Assigned") {
		req.RiderID = p.ID
	}

	pk, err := s.Services.Pickups.Transition(ctx, actorFrom(ctx, p), id, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(pk)
}

// UpdateShipmentStatus applies a shipment transition reported from the field.
func (s *RiderServer) UpdateShipmentStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := auth.RequireRider(ctx)
	if err != nil {
		return nil, err
	}
	id := str(in, "shipmentId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "shipmentId is required")
	}

	sh, err := s.Services.Shipments.Transition(ctx, actorFrom(ctx, p), id, service.TransitionRequest{
		Status:             str(in, "status"),
		Location:           str(in, "location"),
		Description:        str(in, "description"),
		CancellationReason: str(in, "cancellationReason"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(sh)
}
