package inject

// DeviceLineToClientLine undoes the shift Inject applies. breakpointLines are
// the injected client lines of the file, ascending.
func DeviceLineToClientLine(breakpointLines []int, deviceLine int) int {
	corrected := deviceLine
	for _, bp := range breakpointLines {
		if bp > corrected {
			break
		}
		corrected--
	}
	return corrected
}

// ClientLineToDeviceLine is the forward shift: a client line moves down
// once per breakpoint at or above it.
func ClientLineToDeviceLine(breakpointLines []int, clientLine int) int {
	shift := 0
	for _, bp := range breakpointLines {
		if bp > clientLine {
			break
		}
		shift++
	}
	return clientLine + shift
}
