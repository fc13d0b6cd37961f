package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/internal/events"
	"lmdPortal/internal/service"
	"lmdPortal/internal/testutil"
	"lmdPortal/models"
	"lmdPortal/repository"
)

const testSecret = "grpc-secret"

var ops = auth.Actor{ID: "u-ops", Name: "Olivia Ops", Role: auth.RoleOperationsManager}

func newRiderServer(t *testing.T) (*RiderServer, *service.Services) {
	t.Helper()
	svc := service.New(service.Deps{
		Store:  testutil.OpenStore(t),
		Events: &events.Recorder{},
		Log:    zaptest.NewLogger(t),
	})
	return &RiderServer{Services: svc}, svc
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	return s
}

func driverCtx(id string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{ID: id, Name: "Rami", Role: auth.RoleDriver})
}

func seedRider(t *testing.T, svc *service.Services) *models.Rider {
	t.Helper()
	rd, err := svc.Riders.Create(context.Background(), ops, service.CreateRiderInput{Name: "Rami"})
	if err != nil {
		t.Fatalf("create rider: %v", err)
	}
	return rd
}

func TestRider_ReportLocation_RejectsNonRiderPrincipal(t *testing.T) {
	rs, svc := newRiderServer(t)
	rd := seedRider(t, svc)

	pctx := auth.WithPrincipal(context.Background(), &auth.Principal{ID: "u-cs", Role: auth.RoleCustomerService})
	_, err := rs.ReportLocation(pctx, mustStruct(t, map[string]any{"riderId": rd.ID, "lat": 25.2, "lng": 55.3}))
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code=%v want=%v", status.Code(err), codes.PermissionDenied)
	}

	if _, err := rs.ReportLocation(context.Background(), mustStruct(t, map[string]any{})); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("missing principal code=%v", status.Code(err))
	}
}

func TestRider_ReportLocation_UpdatesOwnPosition(t *testing.T) {
	rs, svc := newRiderServer(t)
	rd := seedRider(t, svc)

	out, err := rs.ReportLocation(driverCtx(rd.ID), mustStruct(t, map[string]any{"lat": 25.2, "lng": 55.3, "status": "Moving"}))
	if err != nil {
		t.Fatalf("ReportLocation: %v", err)
	}
	if got := out.GetFields()["status"].GetStringValue(); got != "Moving" {
		t.Fatalf("status=%q", got)
	}
	if got := out.GetFields()["lat"].GetNumberValue(); got != 25.2 {
		t.Fatalf("lat=%v", got)
	}

	other := seedRider(t, svc)
	_, err = rs.ReportLocation(driverCtx(rd.ID), mustStruct(t, map[string]any{"riderId": other.ID, "lat": 1, "lng": 1}))
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("reporting for another rider: code=%v", status.Code(err))
	}

	_, err = rs.ReportLocation(driverCtx(rd.ID), mustStruct(t, map[string]any{"lat": 25.2}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing lng: code=%v", status.Code(err))
	}
	_, err = rs.ReportLocation(driverCtx(rd.ID), mustStruct(t, map[string]any{"lat": 95.0, "lng": 10.0}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("out of range: code=%v", status.Code(err))
	}
}

func TestRider_UpdatePickupStatus_AssignsCallerAndRejectsTerminal(t *testing.T) {
	rs, svc := newRiderServer(t)
	rd := seedRider(t, svc)
	when := time.Now().Add(time.Hour)
	pk, err := svc.Pickups.Schedule(context.Background(), ops, service.SchedulePickupInput{
		CustomerName:  "Acme LLC",
		ScheduledDate: &when,
		Address:       "Warehouse 7, Al Quoz",
		ServiceType:   "Standard",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	out, err := rs.UpdatePickupStatus(driverCtx(rd.ID), mustStruct(t, map[string]any{"pickupId": pk.ID, "status": "Assigned"}))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := out.GetFields()["riderId"].GetStringValue(); got != rd.ID {
		t.Fatalf("riderId=%q want %q", got, rd.ID)
	}

	_, err = rs.UpdatePickupStatus(driverCtx(rd.ID), mustStruct(t, map[string]any{
		"pickupId": pk.ID, "status": "Failed", "failureReason": "gate closed",
	}))
	if err != nil {
		t.Fatalf("fail pickup: %v", err)
	}
	_, err = rs.UpdatePickupStatus(driverCtx(rd.ID), mustStruct(t, map[string]any{"pickupId": pk.ID, "status": "Picked"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("terminal pickup: code=%v", status.Code(err))
	}
	_, err = rs.UpdatePickupStatus(driverCtx(rd.ID), mustStruct(t, map[string]any{"status": "Picked"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing id: code=%v", status.Code(err))
	}
}

func TestRider_UpdateShipmentStatus_LockedShipmentIsDenied(t *testing.T) {
	rs, svc := newRiderServer(t)
	ctx := context.Background()
	sh, err := svc.Shipments.Create(ctx, ops, service.CreateShipmentInput{
		OrderID:        "ORD-G1",
		ConsigneeName:  "Sara Khan",
		ConsigneePhone: "+971501234567",
		Address:        "Villa 3, Dubai Marina",
		ServiceType:    "Express",
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	out, err := rs.UpdateShipmentStatus(driverCtx("r-1"), mustStruct(t, map[string]any{
		"shipmentId": sh.ID, "status": "Out for Delivery", "location": "Marina",
	}))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got := out.GetFields()["status"].GetStringValue(); got != "Out for Delivery" {
		t.Fatalf("status=%q", got)
	}

	m, err := svc.Manifests.Create(ctx, ops, []string{sh.ID})
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if _, err := svc.Manifests.Close(ctx, ops, m.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = rs.UpdateShipmentStatus(driverCtx("r-1"), mustStruct(t, map[string]any{"shipmentId": sh.ID, "status": "Delivered"}))
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("locked shipment: code=%v", status.Code(err))
	}
}

func TestToStatus(t *testing.T) {
	cases := map[apperr.Code]codes.Code{
		apperr.CodeValidation:      codes.InvalidArgument,
		apperr.CodeNotFound:        codes.NotFound,
		apperr.CodeConflict:        codes.FailedPrecondition,
		apperr.CodeForbidden:       codes.PermissionDenied,
		apperr.CodeUnauthenticated: codes.Unauthenticated,
		apperr.CodeInternal:        codes.Internal,
	}
	for in, want := range cases {
		if got := status.Code(toStatus(apperr.New(in, "x"))); got != want {
			t.Fatalf("%s -> %v, want %v", in, got, want)
		}
	}
	if st, _ := status.FromError(toStatus(apperr.Wrap(apperr.CodeInternal, "query", context.DeadlineExceeded))); st.Message() != "internal error" {
		t.Fatalf("internal cause leaked: %q", st.Message())
	}
}

func dialBufconn(t *testing.T, svc *service.Services) *RiderServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(testSecret, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewRiderServiceClient(conn)
}

func TestServer_InterceptorEndToEnd(t *testing.T) {
	_, svc := newRiderServer(t)
	rd := seedRider(t, svc)
	client := dialBufconn(t, svc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Health(ctx, &structpb.Struct{}); err != nil {
		t.Fatalf("health without token: %v", err)
	}

	req := mustStruct(t, map[string]any{"lat": 25.1, "lng": 55.2})
	if _, err := client.ReportLocation(ctx, req); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no token: code=%v", status.Code(err))
	}

	tok := testutil.GenerateJWT(t, testSecret, rd.ID, "Rami", auth.RoleDriver)
	out, err := client.ReportLocation(testutil.OutgoingBearer(ctx, tok), req)
	if err != nil {
		t.Fatalf("ReportLocation: %v", err)
	}
	if out.GetFields()["id"].GetStringValue() != rd.ID {
		t.Fatalf("unexpected rider: %v", out)
	}

	n, err := svc.Audit.ListAuditLogs(ctx, repository.ListAuditParams{EntityID: rd.ID, Action: models.ActionUpdateRiderLocation})
	if err != nil || len(n) != 1 || n[0].ActorID != rd.ID {
		t.Fatalf("location audit: %+v, %v", n, err)
	}
}
