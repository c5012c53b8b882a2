package telemetry

// Operation names for allocation engine profiling labels.
const (
	// OperationProcessPayment labels the payment recording path.
	OperationProcessPayment = "process_payment"
	// OperationScheduleCall labels capital call scheduling.
	OperationScheduleCall = "schedule_call"
	// OperationSettleCall labels capital call settlement.
	OperationSettleCall = "settle_call"
	// OperationVerifyLedgers labels the full-table integrity scan.
	OperationVerifyLedgers = "verify_ledgers"
	// OperationRepairLedgers labels the integrity repair pass.
	OperationRepairLedgers = "repair_ledgers"
	// OperationBatchFetch labels batched entity lookups.
	OperationBatchFetch = "batch_fetch"
	// OperationBuildCalendar labels calendar feed assembly.
	OperationBuildCalendar = "build_calendar"
	// OperationFundSummary labels fund position aggregation.
	OperationFundSummary = "fund_summary"
)

// EngineOperationLabels creates labels for an allocation engine operation.
// The fund ID is optional; pass an empty string when the operation is not
// scoped to a single fund. Fund cardinality is low enough for Pyroscope.
func EngineOperationLabels(operation, fundID string) map[string]string {
	labels := make(map[string]string, 2)
	labels[ProfilingLabelOperation] = operation
	if fundID != "" {
		labels["fund_id"] = fundID
	}
	return labels
}
