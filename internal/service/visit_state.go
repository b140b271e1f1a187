package service

import (
	"time"

	"visitor-gate/internal/model"
)

// ════════════════════════════════════════════════════════════
// 排期有效性校验
// ════════════════════════════════════════════════════════════

// validity 排期是否可用于登记出入
type validity struct {
	valid bool
	// shouldDeactivate 需要持久化 status=inactive（已是 inactive 时不重复写）
	shouldDeactivate bool
}

// checkValidity exit_date 为空时仅由 status 决定
func checkValidity(schedule *model.VisitSchedule, now time.Time) validity {
	if schedule.IsInactive() {
		return validity{valid: false}
	}
	if schedule.ExpiredAt(now) {
		return validity{valid: false, shouldDeactivate: true}
	}
	return validity{valid: true}
}

// ════════════════════════════════════════════════════════════
// 一次性访客状态迁移
// ════════════════════════════════════════════════════════════
//
// 槽位 = 该 (排期, 访客) 最近更新的一条出入记录，记作 (E, X)。
// entryChecked / exitChecked 是期望的最终状态而非增量：
//
//   (true,  false)  无 E      → E=now, X=null（无槽位则新建）
//   (true,  false)  有 E      → 不变
//   (false, true)   E 有 X 无 → X=now
//   (false, true)   其他      → 不变
//   (true,  true)   无 E      → E=now, X=now，排期置 inactive
//   (true,  true)   E 有 X 无 → X=now，排期置 inactive
//   (true,  true)   已关闭    → 不变（不重复置 inactive）
//   (false, false)  有 X      → X=null
//   (false, false)  有 E 无 X → E=null
//   (false, false)  其他      → 不变

// oneTimeMutation 对槽位的一次变更
type oneTimeMutation struct {
	create     bool // 槽位不存在，新建一行
	setEntry   bool
	setExit    bool
	clearEntry bool
	clearExit  bool
	deactivate bool // 同一事务内将排期置为 inactive
}

func (m oneTimeMutation) noop() bool {
	return !m.create && !m.setEntry && !m.setExit && !m.clearEntry && !m.clearExit
}

// decideOneTime 纯函数，slot 为 nil 表示尚无记录
func decideOneTime(slot *model.EntryLog, entryChecked, exitChecked bool) oneTimeMutation {
	exists := slot != nil
	hasEntry := exists && slot.EntryTime != nil
	hasExit := exists && slot.ExitTime != nil

	switch {
	case entryChecked && !exitChecked:
		if hasEntry {
			return oneTimeMutation{}
		}
		// 目标状态 (now, null)，残留的离场时间一并清除
		return oneTimeMutation{create: !exists, setEntry: true, clearExit: hasExit}

	case !entryChecked && exitChecked:
		if hasEntry && !hasExit {
			return oneTimeMutation{setExit: true}
		}
		return oneTimeMutation{}

	case entryChecked && exitChecked:
		if !hasEntry {
			return oneTimeMutation{create: !exists, setEntry: true, setExit: true, deactivate: true}
		}
		if !hasExit {
			return oneTimeMutation{setExit: true, deactivate: true}
		}
		return oneTimeMutation{}

	default:
		if hasExit {
			return oneTimeMutation{clearExit: true}
		}
		if hasEntry {
			return oneTimeMutation{clearEntry: true}
		}
		return oneTimeMutation{}
	}
}

// fields 转换为 Update 使用的列映射，nil 值写入 NULL
func (m oneTimeMutation) fields(now time.Time) map[string]interface{} {
	f := map[string]interface{}{"updated_at": now}
	if m.setEntry {
		f["entry_time"] = now
	}
	if m.clearEntry {
		f["entry_time"] = nil
	}
	if m.setExit {
		f["exit_time"] = now
	}
	if m.clearExit {
		f["exit_time"] = nil
	}
	return f
}

// applyTo 将变更同步到内存中的槽位
func (m oneTimeMutation) applyTo(slot *model.EntryLog, now time.Time) {
	t := now
	if m.setEntry {
		slot.EntryTime = &t
	}
	if m.clearEntry {
		slot.EntryTime = nil
	}
	if m.setExit {
		slot.ExitTime = &t
	}
	if m.clearExit {
		slot.ExitTime = nil
	}
	slot.UpdatedAt = now
}
