package rules

import "fmt"

// Op is a logic-condition operation code. The 57 variants are a frozen wire
// contract: integer values are used as-is on the wire and must never be
// renumbered once shipped.
type Op int

const (
	OpTrue Op = iota // - TRUE 1

	// comparisons
	OpEqual   // a b EQUAL (a==b)
	OpGreater // a b GREATER (a>b)
	OpLower   // a b LOWER (a<b)

	// RC-stick regions
	OpRCLow
	OpRCMid
	OpRCHigh

	// boolean algebra
	OpAnd
	OpOr
	OpXor
	OpNand
	OpNor
	OpNot
	OpSticky

	// arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpModulus
	OpMin
	OpMax

	// register ops
	OpSet
	OpInc
	OpDec

	// trig and mapping
	OpSin
	OpCos
	OpTan
	OpMapInput
	OpMapOutput

	// domain-specific overrides
	OpOverrideThrottleScale
	OpOverrideThrottle
	OpOverrideArmingSafety
	OpSetVTXPowerLevel
	OpSetVTXBand
	OpSetVTXChannel
	OpSetOSDLayout
	OpInvertRoll
	OpInvertPitch
	OpInvertYaw
	OpSwapRollYaw
	OpSetHeadingTarget
	OpLoiterOverride
	OpSetProfile
	OpRCChannelOverride
	OpFlightAxisAngleOverride
	OpFlightAxisRateOverride
	OpOverrideMinGroundSpeed
	OpSetGimbalSensitivity
	OpLEDPinPWM
	OpPortSet
	OpDisableGPSFix
	OpResetMagCalibration

	// timing / edge
	OpEdge
	OpDelay
	OpTimer
	OpDelta
	OpApproxEqual

	opCount // sentinel, not a real opcode
)

var opNames = [...]string{
	OpTrue:                    "TRUE",
	OpEqual:                   "EQUAL",
	OpGreater:                 "GREATER",
	OpLower:                   "LOWER",
	OpRCLow:                   "RC_LOW",
	OpRCMid:                   "RC_MID",
	OpRCHigh:                  "RC_HIGH",
	OpAnd:                     "AND",
	OpOr:                      "OR",
	OpXor:                     "XOR",
	OpNand:                    "NAND",
	OpNor:                     "NOR",
	OpNot:                     "NOT",
	OpSticky:                  "STICKY",
	OpAdd:                     "ADD",
	OpSub:                     "SUB",
	OpMul:                     "MUL",
	OpDiv:                     "DIV",
	OpModulus:                 "MODULUS",
	OpMin:                     "MIN",
	OpMax:                     "MAX",
	OpSet:                     "SET",
	OpInc:                     "INC",
	OpDec:                     "DEC",
	OpSin:                     "SIN",
	OpCos:                     "COS",
	OpTan:                     "TAN",
	OpMapInput:                "MAP_INPUT",
	OpMapOutput:               "MAP_OUTPUT",
	OpOverrideThrottleScale:   "OVERRIDE_THROTTLE_SCALE",
	OpOverrideThrottle:        "OVERRIDE_THROTTLE",
	OpOverrideArmingSafety:    "OVERRIDE_ARMING_SAFETY",
	OpSetVTXPowerLevel:        "SET_VTX_POWER_LEVEL",
	OpSetVTXBand:              "SET_VTX_BAND",
	OpSetVTXChannel:           "SET_VTX_CHANNEL",
	OpSetOSDLayout:            "SET_OSD_LAYOUT",
	OpInvertRoll:              "INVERT_ROLL",
	OpInvertPitch:             "INVERT_PITCH",
	OpInvertYaw:               "INVERT_YAW",
	OpSwapRollYaw:             "SWAP_ROLL_YAW",
	OpSetHeadingTarget:        "SET_HEADING_TARGET",
	OpLoiterOverride:          "LOITER_OVERRIDE",
	OpSetProfile:              "SET_PROFILE",
	OpRCChannelOverride:       "RC_CHANNEL_OVERRIDE",
	OpFlightAxisAngleOverride: "FLIGHT_AXIS_ANGLE_OVERRIDE",
	OpFlightAxisRateOverride:  "FLIGHT_AXIS_RATE_OVERRIDE",
	OpOverrideMinGroundSpeed:  "OVERRIDE_MIN_GROUND_SPEED",
	OpSetGimbalSensitivity:    "SET_GIMBAL_SENSITIVITY",
	OpLEDPinPWM:               "LED_PIN_PWM",
	OpPortSet:                 "PORT_SET",
	OpDisableGPSFix:           "DISABLE_GPS_FIX",
	OpResetMagCalibration:     "RESET_MAG_CALIBRATION",
	OpEdge:                    "EDGE",
	OpDelay:                   "DELAY",
	OpTimer:                   "TIMER",
	OpDelta:                   "DELTA",
	OpApproxEqual:             "APPROX_EQUAL",
}

// OpCount is the number of frozen operation codes (57).
const OpCount = int(opCount)

func (o Op) String() string {
	if int(o) < 0 || int(o) >= len(opNames) || opNames[o] == "" {
		return fmt.Sprintf("OP(%d)", int(o))
	}
	return opNames[o]
}

// Valid reports whether o is one of the frozen operation codes.
func (o Op) Valid() bool {
	return o >= OpTrue && o < opCount
}

// BooleanOps produce a 1/0 result usable as an activator. Any op not in this
// set either produces no boolean result or is an action with side effects.
var booleanOps = map[Op]bool{
	OpTrue: true, OpEqual: true, OpGreater: true, OpLower: true,
	OpRCLow: true, OpRCMid: true, OpRCHigh: true,
	OpAnd: true, OpOr: true, OpXor: true, OpNand: true, OpNor: true,
	OpNot: true, OpSticky: true, OpApproxEqual: true,
	OpEdge: true, OpDelay: true, OpTimer: true, OpDelta: true,
}

// ProducesBoolean reports whether o's result slot may be used as an
// activator for another slot (§3.6 invariant).
func (o Op) ProducesBoolean() bool { return booleanOps[o] }

// opByName is built once from opNames for text-format decoding.
var opByName map[string]Op

func init() {
	opByName = make(map[string]Op, len(opNames))
	for i, n := range opNames {
		if n != "" {
			opByName[n] = Op(i)
		}
	}
}

// ParseOp resolves a mnemonic name to its Op, case-sensitive and matching
// the canonical names in opNames exactly (the design notes accept alternate
// symbolic names only in source-level tests, never on the wire).
func ParseOp(name string) (Op, bool) {
	o, ok := opByName[name]
	return o, ok
}
