package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"github.com/bitfantasy/gatepass/internal/gatepass/testutil"
	"github.com/google/uuid"
)

// seedApprovedRequisition 预置一张已过管理审批的申请单（两行项：2件和10件）
func seedApprovedRequisition(t *testing.T, env *testutil.TestEnv, gatePassNo, docType string) (*entity.Requisition, []entity.RequisitionItem) {
	t.Helper()

	dept := testutil.SeedTestDepartment(t, env.DB, "Maintenance-"+gatePassNo, "MNT-"+gatePassNo)

	req := &entity.Requisition{
		ID:              uuid.New().String()[:32],
		UserID:          "user-001",
		DepartmentID:    dept.ID,
		RequisitionedBy: "R. Kumar",
		RequisitionDate: time.Now(),
		Status:          entity.ReqStatusHigherAuthApprove,
		PRType:          "standard",
	}
	items := []entity.RequisitionItem{
		{ID: uuid.New().String()[:32], RequisitionID: req.ID, ItemCode: "MAT-001", MaterialDescription: "Hydraulic pump", QuantityRequested: 2, Unit: "EA", Status: entity.ReqStatusHigherAuthApprove, SortOrder: 1},
		{ID: uuid.New().String()[:32], RequisitionID: req.ID, ItemCode: "MAT-002", MaterialDescription: "Bearing set", QuantityRequested: 10, Unit: "PCS", Status: entity.ReqStatusHigherAuthApprove, SortOrder: 2},
	}
	req.Items = items
	if err := env.DB.Create(req).Error; err != nil {
		t.Fatalf("seed requisition: %v", err)
	}

	details := &entity.RequisitionDetails{
		ID:            uuid.New().String()[:32],
		RequisitionID: req.ID,
		GatePassNo:    gatePassNo,
		DocumentType:  docType,
		FiscalYear:    "2025-26",
		IssuedBy:      "Store Keeper",
	}
	if err := env.DB.Create(details).Error; err != nil {
		t.Fatalf("seed details: %v", err)
	}

	return req, items
}

func requisitionStatus(t *testing.T, env *testutil.TestEnv, id string) string {
	t.Helper()
	var req entity.Requisition
	if err := env.DB.Where("id = ?", id).First(&req).Error; err != nil {
		t.Fatalf("reload requisition: %v", err)
	}
	return req.Status
}

// TestRecordOutAndDoubleOut RGP出门一次成功，重复出门拒绝
func TestRecordOutAndDoubleOut(t *testing.T) {
	env := setupGatePassTest(t)
	securityToken := testutil.GenerateTestToken("sec-001", "gatekeeper", "security")

	req, _ := seedApprovedRequisition(t, env, "GP-2509-1001", entity.DocumentTypeRGP)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-movements",
		map[string]interface{}{"gatePassNo": "GP-2509-1001"}, securityToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("record out: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	out := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if out["movement_type"].(string) != entity.MovementTypeOut {
		t.Fatalf("expected out movement, got %v", out["movement_type"])
	}
	if out["status"].(string) != entity.MovementStatusPending {
		t.Fatalf("RGP out must start pending, got %v", out["status"])
	}
	if len(out["items"].([]interface{})) != 2 {
		t.Fatalf("expected 2 movement items, got %d", len(out["items"].([]interface{})))
	}

	// 重复出门
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-movements",
		map[string]interface{}{"gatePassNo": "GP-2509-1001"}, securityToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("double out: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	// 出门不改变申请单状态，closed要等回厂收齐
	if got := requisitionStatus(t, env, req.ID); got != entity.ReqStatusHigherAuthApprove {
		t.Fatalf("out must not complete requisition, got %s", got)
	}
}

// TestRecordInPartialThenComplete 部分回厂为partial，收齐后三方联动闭环
func TestRecordInPartialThenComplete(t *testing.T) {
	env := setupGatePassTest(t)
	securityToken := testutil.GenerateTestToken("sec-001", "gatekeeper", "security")

	req, items := seedApprovedRequisition(t, env, "GP-2509-1002", entity.DocumentTypeRGP)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-movements",
		map[string]interface{}{"gatePassNo": "GP-2509-1002"}, securityToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("record out: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	outID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 第一次回厂：只收第一行项，第二行项未勾选不入账
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-in", map[string]interface{}{
		"gatePassNo": "GP-2509-1002",
		"items": []map[string]interface{}{
			{"requisitionItemId": items[0].ID, "quantity": 2, "received": true},
			{"requisitionItemId": items[1].ID, "quantity": 10, "received": false},
		},
	}, securityToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("partial in: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	partial := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if partial["status"].(string) != entity.MovementStatusPartial {
		t.Fatalf("expected partial, got %v", partial["status"])
	}
	if len(partial["items"].([]interface{})) != 1 {
		t.Fatalf("unreceived items must not be recorded, got %d rows", len(partial["items"].([]interface{})))
	}
	if got := requisitionStatus(t, env, req.ID); got != entity.ReqStatusHigherAuthApprove {
		t.Fatalf("partial receipt must not complete requisition, got %s", got)
	}

	// 超量回收拒绝
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-in", map[string]interface{}{
		"gatePassNo": "GP-2509-1002",
		"items": []map[string]interface{}{
			{"requisitionItemId": items[0].ID, "quantity": 1, "received": true},
		},
	}, securityToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("over-ceiling in: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	// 第二次回厂收齐剩余行项
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-in", map[string]interface{}{
		"gatePassNo": "GP-2509-1002",
		"items": []map[string]interface{}{
			{"requisitionItemId": items[1].ID, "quantity": 10, "received": true},
		},
	}, securityToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("final in: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	final := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if final["status"].(string) != entity.MovementStatusCompleted {
		t.Fatalf("expected completed, got %v", final["status"])
	}

	// 三方闭环：in completed、out completed、申请单completed
	var out entity.MaterialMovement
	env.DB.Where("id = ?", outID).First(&out)
	if out.Status != entity.MovementStatusCompleted {
		t.Fatalf("out movement must complete on full receipt, got %s", out.Status)
	}
	if got := requisitionStatus(t, env, req.ID); got != entity.ReqStatusCompleted {
		t.Fatalf("requisition must complete on full receipt, got %s", got)
	}

	// 闭环后不再接受回厂
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-in", map[string]interface{}{
		"gatePassNo": "GP-2509-1002",
		"items": []map[string]interface{}{
			{"requisitionItemId": items[0].ID, "quantity": 1, "received": true},
		},
	}, securityToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("in after close: expected 400, got %d", w.Code)
	}
}

// TestRecordInWithoutOut 未出门不可登记回厂
func TestRecordInWithoutOut(t *testing.T) {
	env := setupGatePassTest(t)
	securityToken := testutil.GenerateTestToken("sec-001", "gatekeeper", "security")

	_, items := seedApprovedRequisition(t, env, "GP-2509-1003", entity.DocumentTypeRGP)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-in", map[string]interface{}{
		"gatePassNo": "GP-2509-1003",
		"items": []map[string]interface{}{
			{"requisitionItemId": items[0].ID, "quantity": 1, "received": true},
		},
	}, securityToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("in without out: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// TestNRGPAtomicClose NRGP出门即闭环：out/in成对、互相关联、申请单completed
func TestNRGPAtomicClose(t *testing.T) {
	env := setupGatePassTest(t)
	securityToken := testutil.GenerateTestToken("sec-001", "gatekeeper", "security")

	req, _ := seedApprovedRequisition(t, env, "GP-2509-1004", entity.DocumentTypeNRGP)

	// RGP接口拒绝NRGP出门证
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-movements",
		map[string]interface{}{"gatePassNo": "GP-2509-1004"}, securityToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("RGP endpoint on NRGP pass: expected 400, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-out-nrgp",
		map[string]interface{}{"gatePassNo": "GP-2509-1004"}, securityToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("NRGP out: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var movements []entity.MaterialMovement
	env.DB.Preload("Items").Where("gate_pass_no = ?", "GP-2509-1004").Find(&movements)
	if len(movements) != 2 {
		t.Fatalf("expected out+in pair, got %d movements", len(movements))
	}

	var outID string
	var inRelated *string
	totalItems := 0
	for _, mv := range movements {
		if mv.Status != entity.MovementStatusCompleted {
			t.Fatalf("NRGP movements must be completed, got %s for %s", mv.Status, mv.MovementType)
		}
		totalItems += len(mv.Items)
		if mv.MovementType == entity.MovementTypeOut {
			outID = mv.ID
		} else {
			inRelated = mv.RelatedMovementID
		}
	}
	if totalItems != 4 {
		t.Fatalf("expected 4 movement item rows, got %d", totalItems)
	}
	if inRelated == nil || *inRelated != outID {
		t.Fatal("in movement must reference out movement")
	}

	if got := requisitionStatus(t, env, req.ID); got != entity.ReqStatusCompleted {
		t.Fatalf("NRGP must complete requisition immediately, got %s", got)
	}

	// 闭环后不可再出门
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-out-nrgp",
		map[string]interface{}{"gatePassNo": "GP-2509-1004"}, securityToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("double NRGP out: expected 400, got %d", w.Code)
	}

	// 台账查询
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/material-movements/GP-2509-1004", nil, securityToken)
	if w.Code != http.StatusOK {
		t.Fatalf("list movements: expected 200, got %d", w.Code)
	}
	listed := testutil.ParseResponse(w)["data"].([]interface{})
	if len(listed) != 2 {
		t.Fatalf("expected 2 movements in listing, got %d", len(listed))
	}
}

// TestRecordOutRequiresApproval 未过管理审批的出门证不可出门
func TestRecordOutRequiresApproval(t *testing.T) {
	env := setupGatePassTest(t)
	securityToken := testutil.GenerateTestToken("sec-001", "gatekeeper", "security")

	req, _ := seedApprovedRequisition(t, env, "GP-2509-1005", entity.DocumentTypeRGP)
	env.DB.Model(&entity.Requisition{}).Where("id = ?", req.ID).Update("status", entity.ReqStatusStoreApprove)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/material-movements",
		map[string]interface{}{"gatePassNo": "GP-2509-1005"}, securityToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out before admin approval: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
