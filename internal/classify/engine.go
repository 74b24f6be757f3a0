package classify

// SickTemperatureThreshold 发烧判定阈值（°C，严格大于）
// 固定领域常量，不可配置，保证判定结果确定可测
const SickTemperatureThreshold = 38.0

// Decide 分类决策（纯函数，无 I/O，无副作用）
// 规则：
// - 未提供音频时 cryDetected = false
// - 提供音频时 cryDetected 直接采用识别模型的结论
// - sickDetected = cryDetected 且 温度 > 38.0°C
// 不变式：sickDetected == true 必然 cryDetected == true
func Decide(hasAudio bool, audioResult bool, temperature float64) (cryDetected bool, sickDetected bool) {
	if hasAudio {
		cryDetected = audioResult
	}
	sickDetected = cryDetected && temperature > SickTemperatureThreshold
	return cryDetected, sickDetected
}
