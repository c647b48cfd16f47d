package types

import "fmt"

// SlotCount is the number of slots at the bottom of the board.
const SlotCount = 20

// Slot multipliers in hundredths, as configured on the contract.
// Unlisted slots pay nothing.
var slotMultipliers = map[uint64]uint64{
	3:  300,
	7:  200,
	11: 500,
	15: 200,
	18: 200,
}

const MainJackpotSlot uint64 = 10

var miniJackpotSlots = []uint64{2, 16}

// Odds are 1 in N per play.
const (
	MainJackpotOdds = 33333
	MiniJackpotOdds = 4762
)

// SlotKind classifies a slot for display.
type SlotKind int

const (
	SlotLose SlotKind = iota
	SlotWin
	SlotMiniJackpot
	SlotMainJackpot
)

// KindOfSlot returns the display class of slot.
func KindOfSlot(slot uint64) SlotKind {
	if slot == MainJackpotSlot {
		return SlotMainJackpot
	}
	for _, s := range miniJackpotSlots {
		if s == slot {
			return SlotMiniJackpot
		}
	}
	if slotMultipliers[slot] > 0 {
		return SlotWin
	}
	return SlotLose
}

// SlotMultiplier returns the multiplier of slot in hundredths.
func SlotMultiplier(slot uint64) uint64 {
	return slotMultipliers[slot]
}

// SlotDescription returns a short label such as "3x" or "MINI JACKPOT".
// It is informational only. Outcomes always come from the Play event.
func SlotDescription(slot uint64) string {
	switch KindOfSlot(slot) {
	case SlotMainJackpot:
		return "MAIN JACKPOT"
	case SlotMiniJackpot:
		return "MINI JACKPOT"
	case SlotWin:
		m := slotMultipliers[slot]
		if m%100 == 0 {
			return fmt.Sprintf("%dx", m/100)
		}
		return fmt.Sprintf("%d.%02dx", m/100, m%100)
	default:
		return "LOSE"
	}
}
