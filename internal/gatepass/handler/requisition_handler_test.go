package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/gatepass/internal/gatepass/entity"
	"github.com/bitfantasy/gatepass/internal/gatepass/repository"
	"github.com/bitfantasy/gatepass/internal/gatepass/service"
	"github.com/bitfantasy/gatepass/internal/gatepass/testutil"
	"github.com/bitfantasy/gatepass/internal/middleware"
	"github.com/bitfantasy/gatepass/internal/shared/sap"
	"go.uber.org/zap"
)

func setupGatePassTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	sapClient := sap.NewClient(sap.Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	services := service.NewServices(repos, db, sapClient, nil, service.SyncResources{}, testutil.JWTSecret, zap.NewNop())
	handlers := NewHandlers(services, repos.Department)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")

	api.GET("/departments", handlers.Department.ListDepartments)
	api.GET("/requisitions", handlers.Requisition.ListRequisitions)
	api.POST("/requisitions", handlers.Requisition.CreateRequisition)
	api.GET("/requisitions/user/:userID", handlers.Requisition.ListByUser)
	api.GET("/requisitions/verify/:gatePassNo", handlers.Requisition.VerifyGatePass)
	api.GET("/requisitions/:id", handlers.Requisition.GetRequisition)
	api.PUT("/requisitions/:id/status", middleware.RequireRole("store"), handlers.Requisition.UpdateStatus)
	api.PUT("/requisitions/:id/state", middleware.RequireRole("admin"), handlers.Requisition.UpdateState)
	api.PUT("/requisitions/:id/reject", middleware.RequireRole("admin"), handlers.Requisition.Reject)
	api.GET("/requisitionsdet", handlers.Requisition.ListRequisitionsWithDetails)
	api.POST("/submit-pr", handlers.Requisition.SubmitPR)
	api.GET("/validate-requisition/:prNum", handlers.Requisition.ValidatePR)
	api.GET("/gatepass-no", middleware.RequireRole("store"), handlers.Requisition.NextGatePassNo)

	api.POST("/material-movements", middleware.RequireRole("security"), handlers.Movement.RecordOut)
	api.GET("/material-movements/:gatePassNo", handlers.Movement.ListByGatePassNo)
	api.POST("/material-in", middleware.RequireRole("security"), handlers.Movement.RecordIn)
	api.POST("/material-out-nrgp", middleware.RequireRole("security"), handlers.Movement.RecordOutNRGP)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func storeApproveBody(gatePassNo, docType string) map[string]interface{} {
	return map[string]interface{}{
		"status":       entity.ReqStatusStoreApprove,
		"gatePassNo":   gatePassNo,
		"documentType": docType,
		"fiscalYear":   "2025-26",
		"issuedBy":     "Store Keeper",
		"supplierName": "Acme Industrial",
	}
}

func createRequisition(t *testing.T, env *testutil.TestEnv, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"department":      1,
		"requisitionedBy": "R. Kumar",
		"remarks":         "维修领用",
		"items": []map[string]interface{}{
			{"itemCode": "MAT-001", "materialDescription": "Hydraulic pump", "quantityReq": 2, "unit": "EA"},
			{"itemCode": "MAT-002", "materialDescription": "Bearing set", "quantityReq": 10, "unit": "PCS"},
		},
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/requisitions", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)["data"].(map[string]interface{})
}

// TestRequisitionLifecycle 完整流转：提交→仓库审批→管理审批→门卫核验
func TestRequisitionLifecycle(t *testing.T) {
	env := setupGatePassTest(t)
	testutil.SeedTestDepartment(t, env.DB, "Maintenance", "MNT")

	userToken := testutil.GenerateTestToken("user-001", "rkumar", "user")
	storeToken := testutil.GenerateTestToken("store-001", "storekeeper", "store")
	adminToken := testutil.GenerateTestToken("admin-001", "plant_head", "admin")

	data := createRequisition(t, env, userToken)
	reqID := data["id"].(string)
	if data["status"].(string) != entity.ReqStatusPending {
		t.Fatalf("new requisition must be pending, got %v", data["status"])
	}
	indentNo, _ := data["service_indent_no"].(string)
	if len(indentNo) == 0 || indentNo[:3] != "SI-" {
		t.Fatalf("expected SI- prefixed indent number, got %q", indentNo)
	}

	// 仓库审批
	w := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/status",
		storeApproveBody("GP-2509-0001", entity.DocumentTypeRGP), storeToken)
	if w.Code != http.StatusOK {
		t.Fatalf("store approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	approved := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if approved["status"].(string) != entity.ReqStatusStoreApprove {
		t.Fatalf("expected storeapprove, got %v", approved["status"])
	}

	// 管理审批（打印，补充运输信息）
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/state",
		map[string]interface{}{"vehicleNo": "MH12AB1234", "transporterName": "Om Logistics"}, adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("admin approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	printed := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if printed["status"].(string) != entity.ReqStatusHigherAuthApprove {
		t.Fatalf("expected higherauthapprove, got %v", printed["status"])
	}
	details := printed["details"].(map[string]interface{})
	if details["vehicle_no"].(string) != "MH12AB1234" {
		t.Fatalf("print refinement lost: %v", details["vehicle_no"])
	}
	if details["fiscal_year"].(string) != "2025-26" {
		t.Fatalf("store approval fields must survive print merge: %v", details["fiscal_year"])
	}

	// 门卫核验
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/requisitions/verify/GP-2509-0001", nil, userToken)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/requisitions/verify/GP-0000-9999", nil, userToken)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown gate pass: expected 404, got %d", w.Code)
	}
}

// TestStoreApproveIdempotent 重复仓库审批为幂等upsert，单头不重复建行
func TestStoreApproveIdempotent(t *testing.T) {
	env := setupGatePassTest(t)
	testutil.SeedTestDepartment(t, env.DB, "Maintenance", "MNT")

	userToken := testutil.GenerateTestToken("user-001", "rkumar", "user")
	storeToken := testutil.GenerateTestToken("store-001", "storekeeper", "store")

	data := createRequisition(t, env, userToken)
	reqID := data["id"].(string)

	w := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/status",
		storeApproveBody("GP-2509-0002", entity.DocumentTypeRGP), storeToken)
	if w.Code != http.StatusOK {
		t.Fatalf("first approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// 再次审批，修改签发人
	body := storeApproveBody("GP-2509-0002", entity.DocumentTypeRGP)
	body["issuedBy"] = "Senior Store Keeper"
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/status", body, storeToken)
	if w.Code != http.StatusOK {
		t.Fatalf("second approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	env.DB.Model(&entity.RequisitionDetails{}).Where("requisition_id = ?", reqID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 details row, got %d", count)
	}

	var details entity.RequisitionDetails
	env.DB.Where("requisition_id = ?", reqID).First(&details)
	if details.IssuedBy != "Senior Store Keeper" {
		t.Fatalf("upsert must update fields, got issued_by %q", details.IssuedBy)
	}
}

// TestStoreApproveValidation 必填字段缺失与非法流转直接400，状态不变
func TestStoreApproveValidation(t *testing.T) {
	env := setupGatePassTest(t)
	testutil.SeedTestDepartment(t, env.DB, "Maintenance", "MNT")

	userToken := testutil.GenerateTestToken("user-001", "rkumar", "user")
	storeToken := testutil.GenerateTestToken("store-001", "storekeeper", "store")
	adminToken := testutil.GenerateTestToken("admin-001", "plant_head", "admin")

	data := createRequisition(t, env, userToken)
	reqID := data["id"].(string)

	// 缺出门证号
	body := storeApproveBody("", entity.DocumentTypeRGP)
	w := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/status", body, storeToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing gatePassNo: expected 400, got %d", w.Code)
	}

	// 非法出门证类型
	body = storeApproveBody("GP-2509-0003", "XGP")
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/status", body, storeToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad documentType: expected 400, got %d", w.Code)
	}

	// pending不可直接管理审批
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/state",
		map[string]interface{}{}, adminToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("pending→higherauthapprove: expected 400, got %d", w.Code)
	}

	// 状态保持pending
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/requisitions/"+reqID, nil, userToken)
	current := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if current["status"].(string) != entity.ReqStatusPending {
		t.Fatalf("failed transitions must not change status, got %v", current["status"])
	}
}

// TestRejectAndTerminalImmutable 任意非终态可拒绝，终态后不可再流转
func TestRejectAndTerminalImmutable(t *testing.T) {
	env := setupGatePassTest(t)
	testutil.SeedTestDepartment(t, env.DB, "Maintenance", "MNT")

	userToken := testutil.GenerateTestToken("user-001", "rkumar", "user")
	storeToken := testutil.GenerateTestToken("store-001", "storekeeper", "store")
	adminToken := testutil.GenerateTestToken("admin-001", "plant_head", "admin")

	data := createRequisition(t, env, userToken)
	reqID := data["id"].(string)

	w := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/reject", nil, adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rejected := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if rejected["status"].(string) != entity.ReqStatusRejected {
		t.Fatalf("expected rejected, got %v", rejected["status"])
	}

	// 终态不可再审批或拒绝
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/reject", nil, adminToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("double reject: expected 400, got %d", w.Code)
	}
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/status",
		storeApproveBody("GP-2509-0004", entity.DocumentTypeRGP), storeToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("approve after reject: expected 400, got %d", w.Code)
	}
}

// TestSubmitPRAndValidate SAP采购申请提交与校验，pr_num重复拒绝
func TestSubmitPRAndValidate(t *testing.T) {
	env := setupGatePassTest(t)
	dept := testutil.SeedTestDepartment(t, env.DB, "Maintenance", "MNT")
	userToken := testutil.GenerateTestToken("user-001", "rkumar", "user")

	// 预置已同步的SAP行
	rows := []entity.PurchaseReqn{
		{PRNum: "10004352", PRItmNum: "00010", ItemCode: "MAT-001", MaterialDescription: "Hydraulic pump", QuantityRequested: 2, Unit: "EA", DepartmentCode: "MNT", RequisitionedBy: "RKUMAR"},
		{PRNum: "10004352", PRItmNum: "00020", ItemCode: "MAT-002", MaterialDescription: "Bearing set", QuantityRequested: 10, Unit: "PCS", DepartmentCode: "MNT", RequisitionedBy: "RKUMAR"},
	}
	if err := env.DB.Create(&rows).Error; err != nil {
		t.Fatalf("seed purchase reqns: %v", err)
	}

	// 校验存在
	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/validate-requisition/10004352", nil, userToken)
	if w.Code != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if result["exists"].(bool) != true {
		t.Fatal("expected exists=true")
	}
	items := result["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	header := result["requisition"].(map[string]interface{})
	if int(header["department_id"].(float64)) != dept.ID {
		t.Fatalf("department code must resolve to id %d, got %v", dept.ID, header["department_id"])
	}

	// 校验不存在
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/validate-requisition/99999999", nil, userToken)
	missing := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if missing["exists"].(bool) != false {
		t.Fatal("expected exists=false")
	}

	// 提交
	submit := map[string]interface{}{
		"requisition": map[string]interface{}{
			"pr_num":           "10004352",
			"department_id":    dept.ID,
			"requisitioned_by": "RKUMAR",
		},
		"items": []map[string]interface{}{
			{"item_code": "MAT-001", "pr_itm_num": "00010", "quantity_requested": 2, "unit": "EA"},
			{"item_code": "MAT-002", "pr_itm_num": "00020", "quantity_requested": 10, "unit": "PCS"},
		},
	}
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/submit-pr", submit, userToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit-pr: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// 重复提交拒绝
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/submit-pr", submit, userToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate submit-pr: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// TestRoleEnforcement 普通用户不可审批，store不可走admin接口
func TestRoleEnforcement(t *testing.T) {
	env := setupGatePassTest(t)
	testutil.SeedTestDepartment(t, env.DB, "Maintenance", "MNT")

	userToken := testutil.GenerateTestToken("user-001", "rkumar", "user")
	storeToken := testutil.GenerateTestToken("store-001", "storekeeper", "store")

	data := createRequisition(t, env, userToken)
	reqID := data["id"].(string)

	w := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/status",
		storeApproveBody("GP-2509-0005", entity.DocumentTypeRGP), userToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user store-approve: expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/requisitions/"+reqID+"/reject", nil, storeToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("store admin-reject: expected 403, got %d", w.Code)
	}

	// 未带token
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/requisitions", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}
}

// TestGatePassNoSequence 出门证号按月重置的递增序列
func TestGatePassNoSequence(t *testing.T) {
	env := setupGatePassTest(t)
	storeToken := testutil.GenerateTestToken("store-001", "storekeeper", "store")

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/gatepass-no", nil, storeToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	first := testutil.ParseResponse(w)["data"].(map[string]interface{})["gate_pass_no"].(string)
	if len(first) == 0 || first[:3] != "GP-" {
		t.Fatalf("expected GP- prefixed number, got %q", first)
	}
}
