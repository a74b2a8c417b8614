// Package icecram loads an iCE40 FPGA's configuration RAM (CRAM) over its
// SPI-slave configuration interface and reports the CDONE verdict.
//
// A Controller owns CRESET_B, CDONE and the optional clock output. A Loader
// runs one configuration session on top of it:
//
//	l.Open()     // reset, CS low, release, clear wait, one dummy byte, select
//	l.Write(bs)  // any number of times
//	l.Close()    // deselect, tri-state CS, dummy clocks, sample CDONE
//
// # References:
//
// Lattice
//   - [TN1248]: iCE40 Programming and Configuration (https://www.latticesemi.com/view_document?document_id=46502)
//   - [Lattice-EB82]: iCEstick User Manual (https://www.latticesemi.com/view_document?document_id=50701)
//   - [iCEBreaker]: iCEBreaker FPGA (https://github.com/icebreaker-fpga/icebreaker/blob/master/hardware/v1.0e/icebreaker-sch.pdf)
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
//
// SPI Flash
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
package icecram
