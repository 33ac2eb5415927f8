package signal

// requiredFields 必填字段，按检查顺序
var requiredFields = []string{"strategy_name", "signal_sent_epoch", "signal_id"}

// missingFields 返回缺失（或为假值）的必填字段
// 在解码后的文档上检查，与入库内容保持一致
func missingFields(doc map[string]any) []string {
	var missing []string
	for _, f := range requiredFields {
		if !truthy(doc[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}
