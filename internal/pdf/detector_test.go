package pdf_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/internal/pdf/pdftest"
)

var _ = Describe("File type detection", func() {
	It("should accept a PDF whatever it is called", func() {
		mt, err := pdf.DetectFileType(pdftest.Build(pdftest.A4(pdftest.White)))
		Expect(err).NotTo(HaveOccurred())
		Expect(mt).To(Equal("application/pdf"))
	})

	DescribeTable("rejecting uploads",
		func(data []byte) {
			_, err := pdf.DetectFileType(data)
			Expect(err).To(MatchError(pdf.ErrUnsupportedFileType))
		},
		Entry("png", pdftest.PNG(4, 4, pdftest.White)),
		Entry("plain text", []byte("hello world")),
		Entry("empty", []byte{}),
	)

	It("should accept PNG and JPEG watermark images", func() {
		mt, err := pdf.DetectImageType(pdftest.PNG(4, 4, pdftest.White))
		Expect(err).NotTo(HaveOccurred())
		Expect(mt).To(Equal("image/png"))

		mt, err = pdf.DetectImageType(pdftest.JPEG(4, 4, pdftest.White))
		Expect(err).NotTo(HaveOccurred())
		Expect(mt).To(Equal("image/jpeg"))

		_, err = pdf.DetectImageType(pdftest.Build(pdftest.A4(pdftest.White)))
		Expect(err).To(MatchError(pdf.ErrUnsupportedFileType))
	})
})
