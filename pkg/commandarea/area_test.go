package commandarea_test

import (
	"testing"

	"github.com/norflash/fwupdate/pkg/commandarea"
	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/flash"
)

const testSectorSize = 512

func newTestArea(t *testing.T) *commandarea.Area {
	t.Helper()
	dev := flash.NewSimDevice(testSectorSize*4, testSectorSize, 0xFF)
	region := &flash.RegionConfig{
		Device:      dev,
		BaseAddress: 0,
		SectorSize:  testSectorSize,
		RegionSize:  testSectorSize * 4,
		EraseValue:  0xFF,
	}
	area, ok := commandarea.New(region)
	if !ok {
		t.Fatal("New() = false")
	}
	return area
}

func TestGetStatusDefaultsToNone(t *testing.T) {
	area := newTestArea(t)
	status, ok := area.GetStatus()
	if !ok {
		t.Fatal("GetStatus() ok = false")
	}
	if status != commandarea.StatusNone {
		t.Fatalf("status = %v, want StatusNone", status)
	}
}

func TestSetStatusThenGetStatus(t *testing.T) {
	area := newTestArea(t)
	if !area.SetStatus(commandarea.StatusHistoryWritten) {
		t.Fatal("SetStatus(HistoryWritten) = false")
	}
	status, _ := area.GetStatus()
	if status != commandarea.StatusHistoryWritten {
		t.Fatalf("status = %v, want HistoryWritten", status)
	}
}

func TestGetStatusReportsHighestPriority(t *testing.T) {
	area := newTestArea(t)
	area.SetStatus(commandarea.StatusHistoryWritten)
	area.SetStatus(commandarea.StatusFirmwareWritten)

	status, _ := area.GetStatus()
	if status != commandarea.StatusFirmwareWritten {
		t.Fatalf("status = %v, want FirmwareWritten (higher priority than HistoryWritten)", status)
	}

	area.SetStatus(commandarea.StatusFailed)
	status, _ = area.GetStatus()
	if status != commandarea.StatusFailed {
		t.Fatalf("status = %v, want Failed (highest priority)", status)
	}
}

func TestSetStatusIsIdempotent(t *testing.T) {
	area := newTestArea(t)
	if !area.SetStatus(commandarea.StatusHistoryWritten) {
		t.Fatal("first SetStatus failed")
	}
	if !area.SetStatus(commandarea.StatusHistoryWritten) {
		t.Fatal("repeat SetStatus should succeed as a no-op")
	}
}

func TestWriteAndReadInstallCommand(t *testing.T) {
	area := newTestArea(t)
	m := &firmware.Metadata{FirmwareID: 7}
	copy(m.Magic[:], "INSTALLMAGIC0123")

	if !area.WriteInstallCommand(commandarea.CommandInstallFirmware, m) {
		t.Fatal("WriteInstallCommand() = false")
	}

	cmd, got, ok := area.ReadInstallCommand()
	if !ok {
		t.Fatal("ReadInstallCommand() ok = false")
	}
	if cmd != commandarea.CommandInstallFirmware {
		t.Fatalf("cmd = %v, want CommandInstallFirmware", cmd)
	}
	if got.FirmwareID != m.FirmwareID {
		t.Fatalf("FirmwareID = %d, want %d", got.FirmwareID, m.FirmwareID)
	}
}

func TestWriteInstallCommandResetsState(t *testing.T) {
	area := newTestArea(t)
	area.SetStatus(commandarea.StatusFirmwareWritten)

	m := &firmware.Metadata{FirmwareID: 1}
	area.WriteInstallCommand(commandarea.CommandInstallFirmware, m)

	status, _ := area.GetStatus()
	if status != commandarea.StatusNone {
		t.Fatalf("status after WriteInstallCommand = %v, want StatusNone", status)
	}
}

func TestWriteAndReadHistory(t *testing.T) {
	area := newTestArea(t)
	m := &firmware.Metadata{FirmwareID: 99, Version: 3}

	if !area.WriteHistory(m) {
		t.Fatal("WriteHistory() = false")
	}

	got, ok := area.ReadHistory()
	if !ok {
		t.Fatal("ReadHistory() ok = false")
	}
	if got.FirmwareID != m.FirmwareID || got.Version != m.Version {
		t.Fatalf("got %+v, want FirmwareID=%d Version=%d", got, m.FirmwareID, m.Version)
	}
}

func TestEraseInstallCommandPreservesHistory(t *testing.T) {
	area := newTestArea(t)
	hist := &firmware.Metadata{FirmwareID: 5}
	area.WriteHistory(hist)

	m := &firmware.Metadata{FirmwareID: 1}
	area.WriteInstallCommand(commandarea.CommandInstallFirmware, m)

	if !area.EraseInstallCommand() {
		t.Fatal("EraseInstallCommand() = false")
	}

	got, ok := area.ReadHistory()
	if !ok || got.FirmwareID != hist.FirmwareID {
		t.Fatal("history was disturbed by EraseInstallCommand")
	}
}

func TestSetUserStatusRejectsReservedMagic(t *testing.T) {
	area := newTestArea(t)
	if area.SetUserStatus(0xB2B2B2B2) {
		t.Fatal("SetUserStatus should reject a reserved magic value")
	}
}

func TestSetUserStatusThenPresent(t *testing.T) {
	area := newTestArea(t)
	const token = 0x12345678
	if !area.SetUserStatus(token) {
		t.Fatal("SetUserStatus() = false")
	}
	if !area.UserStatusPresent(token) {
		t.Fatal("UserStatusPresent() = false after SetUserStatus")
	}
}
