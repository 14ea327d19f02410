package ds3231

// intToBCD packs 0..99 into two BCD nibbles.
func intToBCD(v int) uint8 {
	return uint8(v + 6*(v/10))
}

// bcdToInt unpacks two BCD nibbles.
func bcdToInt(v uint8) int {
	return int(v - 6*(v>>4))
}

// hoursBCDToInt decodes the hours register in either 12 or 24 hour mode.
// Bit 6 selects 12 hour mode, in which bit 5 is the PM flag.
func hoursBCDToInt(v uint8) int {
	if v&0x40 == 0 {
		return bcdToInt(v & 0x3F)
	}
	h := bcdToInt(v & 0x1F)
	if h == 12 {
		h = 0
	}
	if v&0x20 != 0 {
		h += 12
	}
	return h
}

// DecodeAlarmHoursMinutes decodes the minutes and hours bytes of an alarm
// register block, ignoring the AxMy mask bits.
func DecodeAlarmHoursMinutes(minutes, hours uint8) (int, int) {
	return hoursBCDToInt(hours &^ alarmMask), bcdToInt(minutes &^ alarmMask)
}
